// Package config loads, defaults and validates the scheduler configuration.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/naa/pkg/consts"
	naaerrors "github.com/turtacn/naa/pkg/errors"
	"github.com/turtacn/naa/pkg/protocol"
)

// Config mirrors the configuration file. Durations are whole seconds.
type Config struct {
	ProgramList       []string `mapstructure:"program_list" json:"program_list" yaml:"program_list"`
	ProcessNames      []string `mapstructure:"process_names" json:"process_names" yaml:"process_names"`
	RunHour           int      `mapstructure:"run_hour" json:"run_hour" yaml:"run_hour"`
	RunMinute         int      `mapstructure:"run_minute" json:"run_minute" yaml:"run_minute"`
	CountdownDuration int      `mapstructure:"countdown_duration" json:"countdown_duration" yaml:"countdown_duration"`
	ShutdownDelay     int      `mapstructure:"shutdown_delay" json:"shutdown_delay" yaml:"shutdown_delay"`
	AutoShutdown      bool     `mapstructure:"auto_shutdown" json:"auto_shutdown" yaml:"auto_shutdown"`
	AutoStartup       bool     `mapstructure:"auto_startup" json:"auto_startup" yaml:"auto_startup"`

	MuteDuringRun bool   `mapstructure:"mute_during_run" json:"mute_during_run" yaml:"mute_during_run"`
	RepeatDaily   bool   `mapstructure:"repeat_daily" json:"repeat_daily" yaml:"repeat_daily"`
	StartTimeout  int    `mapstructure:"start_timeout" json:"start_timeout" yaml:"start_timeout"`
	LogLevel      string `mapstructure:"log_level" json:"log_level" yaml:"log_level"`
	LogFormat     string `mapstructure:"log_format" json:"log_format" yaml:"log_format"`
	MetricsAddr   string `mapstructure:"metrics_addr" json:"metrics_addr" yaml:"metrics_addr"`
	ControlSocket string `mapstructure:"control_socket" json:"control_socket" yaml:"control_socket"`
}

// Default returns the configuration written to a fresh config file.
func Default() Config {
	return Config{
		ProgramList: []string{
			`D:\ProgramPortable\ZenlessZoneZero-OneDragon\OneDragon Scheduler.exe`,
			`D:\ProgramPortable\March7thAssistant\March7th Assistant.exe`,
		},
		ProcessNames:      []string{"ZenlessZoneZero.exe", "StarRail.exe"},
		RunHour:           consts.DefaultRunHour,
		RunMinute:         consts.DefaultRunMinute,
		CountdownDuration: consts.DefaultCountdown,
		ShutdownDelay:     consts.DefaultShutdownDelay,
		AutoShutdown:      false,
		AutoStartup:       false,
		MuteDuringRun:     true,
		RepeatDaily:       true,
		StartTimeout:      consts.DefaultStartTimeoutS,
		LogLevel:          "info",
		LogFormat:         "text",
		MetricsAddr:       "",
		ControlSocket:     filepath.Join(os.TempDir(), consts.DefaultSocketName),
	}
}

// Load reads path, creating it with Default() first when it does not exist.
// Environment variables prefixed with NAA_ override file values.
// created reports whether the file was just written.
func Load(path string) (cfg Config, created bool, err error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		if err := Write(path, Default()); err != nil {
			return Config{}, false, err
		}
		created = true
	}

	v := viper.New()
	v.SetConfigFile(path)
	if isJSON(path) {
		v.SetConfigType("json")
	} else {
		v.SetConfigType("yaml")
	}
	setDefaults(v, Default())
	v.SetEnvPrefix(consts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, created, naaerrors.New(naaerrors.ErrCodeConfigIO, "LoadConfig", "cannot read "+path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, created, naaerrors.New(naaerrors.ErrCodeConfigInvalid, "LoadConfig", "cannot decode "+path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, created, err
	}
	return cfg, created, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("program_list", d.ProgramList)
	v.SetDefault("process_names", d.ProcessNames)
	v.SetDefault("run_hour", d.RunHour)
	v.SetDefault("run_minute", d.RunMinute)
	v.SetDefault("countdown_duration", d.CountdownDuration)
	v.SetDefault("shutdown_delay", d.ShutdownDelay)
	v.SetDefault("auto_shutdown", d.AutoShutdown)
	v.SetDefault("auto_startup", d.AutoStartup)
	v.SetDefault("mute_during_run", d.MuteDuringRun)
	v.SetDefault("repeat_daily", d.RepeatDaily)
	v.SetDefault("start_timeout", d.StartTimeout)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("control_socket", d.ControlSocket)
}

// Write stores cfg at path, as JSON for a .json file and YAML otherwise.
func Write(path string, cfg Config) error {
	var (
		data []byte
		err  error
	)
	if isJSON(path) {
		data, err = json.MarshalIndent(cfg, "", "    ")
		data = append(data, '\n')
	} else {
		data, err = cfg.YAML()
	}
	if err != nil {
		return naaerrors.New(naaerrors.ErrCodeConfigIO, "WriteConfig", "cannot encode config", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return naaerrors.New(naaerrors.ErrCodeConfigIO, "WriteConfig", "cannot create "+dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return naaerrors.New(naaerrors.ErrCodeConfigIO, "WriteConfig", "cannot write "+path, err)
	}
	return nil
}

// YAML renders cfg as a YAML document.
func (c Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate reports every structural problem at once.
func (c Config) Validate() error {
	var errs []error
	if len(c.ProgramList) != len(c.ProcessNames) {
		errs = append(errs, fmt.Errorf("program_list has %d entries but process_names has %d", len(c.ProgramList), len(c.ProcessNames)))
	}
	for i, p := range c.ProgramList {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("program_list[%d] is empty", i))
		}
	}
	for i, n := range c.ProcessNames {
		if strings.TrimSpace(n) == "" {
			errs = append(errs, fmt.Errorf("process_names[%d] is empty", i))
		}
	}
	if c.RunHour < 0 || c.RunHour > 23 {
		errs = append(errs, fmt.Errorf("run_hour %d out of range 0-23", c.RunHour))
	}
	if c.RunMinute < 0 || c.RunMinute > 59 {
		errs = append(errs, fmt.Errorf("run_minute %d out of range 0-59", c.RunMinute))
	}
	if c.CountdownDuration < 0 {
		errs = append(errs, fmt.Errorf("countdown_duration %d is negative", c.CountdownDuration))
	}
	if c.ShutdownDelay < 0 {
		errs = append(errs, fmt.Errorf("shutdown_delay %d is negative", c.ShutdownDelay))
	}
	if c.StartTimeout < 0 {
		errs = append(errs, fmt.Errorf("start_timeout %d is negative", c.StartTimeout))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log_format %q is not json or text", c.LogFormat))
	}

	if len(errs) == 0 {
		return nil
	}
	return naaerrors.New(naaerrors.ErrCodeConfigInvalid, "ValidateConfig", "invalid configuration", errors.Join(errs...))
}

// RunConfig converts the file settings into the scheduler input, pairing
// programs and process names by position.
func (c Config) RunConfig() protocol.RunConfig {
	steps := make([]protocol.ProgramStep, 0, len(c.ProgramList))
	for i := range min(len(c.ProgramList), len(c.ProcessNames)) {
		steps = append(steps, protocol.ProgramStep{Path: c.ProgramList[i], ProcessName: c.ProcessNames[i]})
	}
	startTimeout := time.Duration(c.StartTimeout) * time.Second
	if startTimeout == 0 {
		startTimeout = consts.DefaultStartTimeout
	}
	return protocol.RunConfig{
		Steps:         steps,
		FireHour:      c.RunHour,
		FireMinute:    c.RunMinute,
		PreNotice:     time.Duration(c.CountdownDuration) * time.Second,
		StartTimeout:  startTimeout,
		AutoShutdown:  c.AutoShutdown,
		ShutdownDelay: time.Duration(c.ShutdownDelay) * time.Second,
		MuteDuringRun: c.MuteDuringRun,
		RepeatDaily:   c.RepeatDaily,
	}
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// Personal.AI order the ending
