package config

import (
	"fmt"
	"strconv"
)

// GetValue reads a dotted config key (e.g. "hotkey.key",
// "correction.timeout_secs") as a string, for the IPC config_get
// command. Returns an error for unrecognized keys.
func (c Config) GetValue(key string) (string, error) {
	switch key {
	case "hotkey.key":
		return c.Hotkey.Key, nil
	case "hotkey.mode":
		return c.Hotkey.Mode, nil
	case "transcription.model":
		return c.Transcription.Model, nil
	case "transcription.language":
		return c.Transcription.Language, nil
	case "transcription.device":
		return c.Transcription.Device, nil
	case "transcription.translate":
		return strconv.FormatBool(c.Transcription.Translate), nil
	case "audio.preprocessing":
		return strconv.FormatBool(c.Audio.Preprocessing), nil
	case "audio.resampling_quality":
		return c.Audio.ResamplingQuality, nil
	case "output.clipboard":
		return strconv.FormatBool(c.Output.Clipboard), nil
	case "output.paste":
		return strconv.FormatBool(c.Output.Paste), nil
	case "queue.chunk_interval_secs":
		return strconv.FormatFloat(c.Queue.ChunkIntervalSecs, 'f', -1, 64), nil
	case "queue.separator":
		return c.Queue.Separator, nil
	case "vocabulary.path":
		return c.Vocabulary.Path, nil
	case "correction.enabled":
		return strconv.FormatBool(c.Correction.Enabled), nil
	case "correction.endpoint_url":
		return c.Correction.EndpointURL, nil
	case "correction.model":
		return c.Correction.Model, nil
	case "correction.timeout_secs":
		return strconv.FormatFloat(c.Correction.TimeoutSecs, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("config: unknown key %q", key)
	}
}

// SetValue writes a dotted config key from its string representation,
// for the IPC config_set command. Returns an error for unrecognized
// keys or a value that doesn't parse as the field's type.
func (c *Config) SetValue(key, value string) error {
	switch key {
	case "hotkey.key":
		c.Hotkey.Key = value
	case "hotkey.mode":
		c.Hotkey.Mode = value
	case "transcription.model":
		c.Transcription.Model = value
	case "transcription.language":
		c.Transcription.Language = value
	case "transcription.device":
		c.Transcription.Device = value
	case "transcription.translate":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: %q must be a bool: %w", key, err)
		}
		c.Transcription.Translate = b
	case "audio.preprocessing":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: %q must be a bool: %w", key, err)
		}
		c.Audio.Preprocessing = b
	case "audio.resampling_quality":
		c.Audio.ResamplingQuality = value
	case "output.clipboard":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: %q must be a bool: %w", key, err)
		}
		c.Output.Clipboard = b
	case "output.paste":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: %q must be a bool: %w", key, err)
		}
		c.Output.Paste = b
	case "queue.chunk_interval_secs":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("config: %q must be a number: %w", key, err)
		}
		c.Queue.ChunkIntervalSecs = f
	case "queue.separator":
		c.Queue.Separator = value
	case "vocabulary.path":
		c.Vocabulary.Path = value
	case "correction.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: %q must be a bool: %w", key, err)
		}
		c.Correction.Enabled = b
	case "correction.endpoint_url":
		c.Correction.EndpointURL = value
	case "correction.model":
		c.Correction.Model = value
	case "correction.timeout_secs":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("config: %q must be a number: %w", key, err)
		}
		c.Correction.TimeoutSecs = f
	default:
		return fmt.Errorf("config: unknown key %q", key)
	}
	return nil
}
