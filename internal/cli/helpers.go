package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/campusclub/gamify/internal/daemon"
	"github.com/campusclub/gamify/internal/logging"
)

// loadConfig reads --config or the default location.
func loadConfig() (daemon.Config, error) {
	if configPath != "" {
		return daemon.LoadConfigFile(configPath)
	}
	return daemon.LoadConfig()
}

// openDaemon wires the services without starting any loop. Logs go to the
// configured file only so command output stays clean.
func openDaemon() (*daemon.Daemon, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logCfg := cfg.Logging
	logCfg.Console = false
	if logCfg.File == "" {
		logCfg.Level = "error"
	}
	log, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}
	return daemon.NewWithConfig(cfg, log)
}

// printJSON writes v indented.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseData turns key=value pairs into activity data.
func parseData(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	data := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid data %q: want key=value", p)
		}
		data[k] = v
	}
	return data, nil
}
