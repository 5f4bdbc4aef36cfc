package internal

import (
	"chat-relay/errors"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the environment layer of the relay configuration.
type Config struct {
	SettingsPath         string        `env:"SETTINGS_PATH,default=settings.json"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,default=./data/journal"`
	ProbeTimeout         time.Duration `env:"PROBE_TIMEOUT,default=4s"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=5s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	StatsInterval        time.Duration `env:"STATS_INTERVAL,default=1m"`
	JournalBufferSize    int           `env:"JOURNAL_BUFFER_SIZE,default=256"`
	MaxLineLength        int           `env:"MAX_LINE_LENGTH,default=65536"`
	ModerationWordsPath  string        `env:"MODERATION_WORDS_PATH"`
	CharacterReplacement string        `env:"CHARACTER_REPLACEMENT,default=*"`
}

// Settings is the JSON settings file read once at startup.
// Fields are pointers so that a missing key is told apart from a zero value.
type Settings struct {
	ServerIP      *string  `json:"serverIp" validate:"required"`
	ServerPort    *int     `json:"serverPort" validate:"required,min=1,max=65535"`
	PingTime      *float64 `json:"pingTime" validate:"required,gt=0"`
	ClientNameLen *int     `json:"clientNameLen" validate:"required,min=1"`
}

var validate = validator.New()

// LoadSettings reads and validates the settings file at path.
// Every failure wraps errors.ErrConfigLoad.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %w", errors.ErrConfigLoad, err)
	}
	return ParseSettings(data)
}

func ParseSettings(data []byte) (Settings, error) {
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("%w: malformed settings: %w", errors.ErrConfigLoad, err)
	}
	if err := validate.Struct(s); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", errors.ErrConfigLoad, err)
	}
	return s, nil
}

func (s Settings) Address() string {
	return fmt.Sprintf("%s:%d", *s.ServerIP, *s.ServerPort)
}

func (s Settings) Ping() time.Duration {
	return time.Duration(*s.PingTime * float64(time.Second))
}

// EffectiveProbeTimeout keeps the probe wait strictly shorter than the ping interval.
func EffectiveProbeTimeout(probe, ping time.Duration) time.Duration {
	if probe <= 0 || probe >= ping {
		return ping / 2
	}
	return probe
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"%w: CHARACTER_REPLACEMENT must be a single character, got %q",
			errors.ErrInvalidReplacement, str,
		)
	}
	return r[0], nil
}
