// Command setclave sets a student's portal password.
//
//	setclave -matricula A001 -clave secret123
//	echo secret123 | setclave -matricula A001
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"universidad/internal/auth"
	"universidad/internal/config"
	"universidad/internal/database"
	"universidad/internal/ratelimit"
	"universidad/internal/repository"
	"universidad/internal/security"
)

func main() {
	matricula := flag.String("matricula", "", "student code")
	clave := flag.String("clave", "", "new password, read from stdin when empty")
	flag.Parse()

	if err := run(*matricula, *clave); err != nil {
		fmt.Fprintln(os.Stderr, "setclave:", err)
		os.Exit(1)
	}
}

func run(matricula, clave string) error {
	matricula = strings.TrimSpace(matricula)
	if matricula == "" {
		return errors.New("-matricula is required")
	}

	if clave == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password from stdin: %w", err)
		}
		clave = strings.TrimRight(line, "\r\n")
	}
	if len([]rune(clave)) < auth.MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", auth.MinPasswordLength)
	}
	if len(clave) > security.MaxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes", security.MaxPasswordBytes)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	students := repository.NewEstudianteRepository(db)
	est, err := students.GetByMatricula(ctx, matricula)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("no student with code %q", matricula)
	}
	if err != nil {
		return err
	}

	// The limiter is never consulted when setting a password.
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryAttemptStore(), 0, 0)
	svc := auth.NewService(students, security.NewBcryptHasher(cfg.BcryptCost), limiter, slog.Default())
	if err := svc.SetPassword(ctx, est.ID, clave); err != nil {
		return err
	}

	fmt.Printf("password updated for %s\n", est)
	return nil
}
