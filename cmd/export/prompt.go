package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mangrovewatch/mangrove/internal/export"
)

const (
	defaultExportVersion = "1.0.0"
	defaultDescription   = "Mangrove Watch Export"
	defaultArgonMemoryMB = 16
)

var (
	// ErrInvalidHashType indicates an unknown pseudonymization hash.
	ErrInvalidHashType = errors.New("invalid hash type")
	// ErrSaltRequired indicates no salt was given by flag or prompt.
	ErrSaltRequired = errors.New("salt is required")
	// ErrInvalidNumber indicates a numeric answer could not be parsed.
	ErrInvalidNumber = errors.New("invalid number")
)

// prompter asks on the terminal for export settings the flags left empty.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// complete fills every empty field of cfg and validates the result.
func (p *prompter) complete(cfg *export.Config) error {
	var err error

	if cfg.ExportVersion == "" {
		if cfg.ExportVersion, err = p.ask("Export version", defaultExportVersion); err != nil {
			return err
		}
	}

	if cfg.Salt == "" {
		if cfg.Salt, err = p.ask("Salt for pseudonymous IDs", ""); err != nil {
			return err
		}
		if cfg.Salt == "" {
			return ErrSaltRequired
		}
	}

	if cfg.Description == "" {
		if cfg.Description, err = p.ask("Export description", defaultDescription); err != nil {
			return err
		}
	}

	if cfg.HashType == "" {
		if cfg.HashType, err = p.ask("Hash type (argon2id/sha256)", string(export.HashTypeSHA256)); err != nil {
			return err
		}
	}

	argon := cfg.HashType == string(export.HashTypeArgon2id)
	if !argon && cfg.HashType != string(export.HashTypeSHA256) {
		return fmt.Errorf("%w: %s", ErrInvalidHashType, cfg.HashType)
	}

	if cfg.Iterations == 0 {
		def := uint32(1)
		if argon {
			def = 16
		}
		if cfg.Iterations, err = p.askNumber("Hash iterations", def); err != nil {
			return err
		}
	}

	if argon && cfg.Memory == 0 {
		if cfg.Memory, err = p.askNumber("Argon2id memory in MB", defaultArgonMemoryMB); err != nil {
			return err
		}
	}

	return nil
}

// ask prints the label with its default and returns the trimmed answer or the default.
func (p *prompter) ask(label, def string) (string, error) {
	if def != "" {
		label = fmt.Sprintf("%s [%s]", label, def)
	}
	fmt.Fprint(p.out, label+": ")

	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}

	if answer := strings.TrimSpace(line); answer != "" {
		return answer, nil
	}

	return def, nil
}

func (p *prompter) askNumber(label string, def uint32) (uint32, error) {
	answer, err := p.ask(label, strconv.FormatUint(uint64(def), 10))
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseUint(answer, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w for %s: %q", ErrInvalidNumber, strings.ToLower(label), answer)
	}

	return uint32(n), nil
}
