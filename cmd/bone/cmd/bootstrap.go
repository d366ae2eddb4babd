package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/config"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/render"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/server"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/service"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

// Output formats accepted by --format.
const (
	formatJSON     = "json"
	formatMarkdown = "markdown"
	formatHTML     = "html"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return cfg, nil
}

// buildService wires the generation service from cfg.
func buildService(cfg *config.Config, offline bool) (*service.Service, error) {
	return server.NewBuilder(log, cfg).WithOffline(offline).BuildService()
}

// resolveFormat picks markdown for terminals and JSON for pipes when the
// flag is empty.
func resolveFormat(flag string) (string, error) {
	switch flag {
	case "":
		if isTerminal() {
			return formatMarkdown, nil
		}

		return formatJSON, nil
	case formatJSON, formatMarkdown, formatHTML:
		return flag, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, markdown or html)", flag)
	}
}

// writeSOP prints sop in format. JSON output uses jsonBody.
func writeSOP(w io.Writer, format string, sop *types.SOP, jsonBody any) error {
	var (
		data []byte
		err  error
	)

	switch format {
	case formatJSON:
		data, err = json.MarshalIndent(jsonBody, "", "  ")
		data = append(data, '\n')
	case formatMarkdown:
		data, err = render.Markdown(sop)
	case formatHTML:
		data, err = render.HTML(sop)
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	if err != nil {
		return fmt.Errorf("rendering %s: %w", format, err)
	}

	_, err = w.Write(data)

	return err
}

// outputJSON marshals a value to JSON and prints it to stdout.
func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}

	fmt.Println(string(data))

	return nil
}

// isTerminal returns true if stdout is a terminal (TTY).
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// suppressLogs keeps one-off commands quiet unless debugging.
func suppressLogs() {
	if log.GetLevel() < logrus.DebugLevel {
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.WarnLevel)
	}
}
