package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileEnvVar is the variable, resolved within the namespace, that names an optional TOML file.
const FileEnvVar = "CONFIG_FILE"

var (
	// ErrInvalidConfig is returned when the provided config is not a pointer to a struct
	// that embeds EnvConfig.
	ErrInvalidConfig = errors.New("config must be a pointer to a struct embedding EnvConfig")

	// ErrVarNotSet is returned when a required variable is set neither in the
	// environment nor in the config file, and has no default.
	ErrVarNotSet = errors.New("env var not set")

	// ErrUnsupportedVarType is returned when trying to parse an environment variable
	// into an unsupported Go type.
	ErrUnsupportedVarType = errors.New("unsupported env var type")
)

//nolint:gochecknoglobals
var durationType = reflect.TypeOf(time.Duration(0))

// EnvConfig is a base type that must be embedded in configuration structs
// to enable environment variable parsing.
type EnvConfig struct {
	namespace string
	file      string
}

// Namespace returns the prefix the config was parsed with.
func (c EnvConfig) Namespace() string {
	return c.namespace
}

// File returns the path of the TOML file the config was loaded from, if any.
func (c EnvConfig) File() string {
	return c.file
}

//nolint:varnamelen
func getEnvConfig(cfg any) (*EnvConfig, error) {
	v := reflect.ValueOf(cfg)

	// Ensure cfg is a pointer to a struct
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, ErrInvalidConfig
	}

	v = v.Elem()
	t := v.Type()

	for i := range t.NumField() {
		field := t.Field(i)
		//nolint:exhaustruct,forcetypeassert
		if field.Anonymous && field.Type == reflect.TypeOf(EnvConfig{}) {
			if ev := v.Field(i); ev.CanAddr() {
				return ev.Addr().Interface().(*EnvConfig), nil
			}
		}
	}

	return nil, ErrInvalidConfig
}

// Parse loads configuration into the provided struct. Values are resolved in order:
// the `default` tag, then the TOML file named by <namespace>_CONFIG_FILE (if set),
// then environment variables named by the `env` tag, with `envPrefix` applied for
// nested structs and the namespace used as prefix. Supports string, int, bool and
// time.Duration fields. Returns an error if parsing fails or required variables are missing.
func Parse(ctx context.Context, cfg any, namespace string) error {
	envConfig, err := getEnvConfig(cfg)
	if err != nil {
		return fmt.Errorf("get env config: %w", err)
	}

	if err := walk(namespace, "", cfg, applyDefault); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}

	if file, ok := lookupEnv(namespace, "", FileEnvVar); ok && file != "" {
		if _, err := toml.DecodeFile(file, cfg); err != nil {
			return fmt.Errorf("decode config file: %w", err)
		}

		envConfig.file = file
	}

	envConfig.namespace = namespace

	return walk(namespace, "", cfg, applyEnv)
}

type fieldFunc func(namespace, prefix string, field reflect.StructField, structField reflect.Value) error

func walk(namespace, prefix string, c any, fn fieldFunc) error {
	t := reflect.TypeOf(c).Elem()
	v := reflect.ValueOf(c).Elem()

	for i := range t.NumField() {
		field := t.Field(i)
		structField := v.Field(i)

		if field.Type.Kind() == reflect.Struct && field.IsExported() {
			envPrefix := field.Tag.Get("envPrefix")

			if err := walk(namespace, prefix+envPrefix, structField.Addr().Interface(), fn); err != nil {
				return err
			}

			continue
		}

		if err := fn(namespace, prefix, field, structField); err != nil {
			return fmt.Errorf("parse field: %w", err)
		}
	}

	return nil
}

func applyDefault(_, _ string, field reflect.StructField, structField reflect.Value) error {
	if field.Tag.Get("env") == "" {
		return nil
	}

	defaultValue, hasDefault := field.Tag.Lookup("default")
	if !hasDefault {
		return nil
	}

	return setValue(field, structField, defaultValue)
}

func applyEnv(namespace, prefix string, field reflect.StructField, structField reflect.Value) error {
	envTag := field.Tag.Get("env")
	if envTag == "" {
		return nil // Skip field if no env tag is set
	}

	envValue, envExists := lookupEnv(namespace, prefix, envTag)
	if !envExists {
		_, hasDefault := field.Tag.Lookup("default")
		if !hasDefault && structField.IsZero() {
			return fmt.Errorf("%w: %s", ErrVarNotSet, envTag)
		}

		return nil
	}

	return setValue(field, structField, envValue)
}

// lookupEnv tries the most specific namespace first, then drops trailing namespace parts.
func lookupEnv(namespace, prefix, name string) (string, bool) {
	nsParts := strings.Split(namespace, "_")

	for i := len(nsParts); i > 0; i-- {
		envName := strings.Join(nsParts[:i], "_")

		if envName != "" {
			envName += "_"
		}

		if envValue, ok := os.LookupEnv(envName + prefix + name); ok {
			return envValue, true
		}
	}

	return "", false
}

func setValue(field reflect.StructField, structField reflect.Value, value string) error {
	envTag := field.Tag.Get("env")

	if field.Type == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", envTag, err)
		}

		structField.SetInt(int64(d))

		return nil
	}

	//nolint:exhaustive
	switch field.Type.Kind() {
	case reflect.String:
		structField.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, field.Type.Bits())
		if err != nil {
			return fmt.Errorf("invalid type for %s: %w", envTag, err)
		}

		structField.SetInt(intValue)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		uintValue, err := strconv.ParseUint(value, 10, field.Type.Bits())
		if err != nil {
			return fmt.Errorf("invalid type for %s: %w", envTag, err)
		}

		structField.SetUint(uintValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid type for %s: %w", envTag, err)
		}

		structField.SetBool(boolValue)
	default:
		return fmt.Errorf("%w: %s (%v)", ErrUnsupportedVarType, envTag, field.Type.Kind())
	}

	return nil
}
