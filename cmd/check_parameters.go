package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func checkParameterValues() error {

	switch sinkType(viper.GetString("sink.type")) {
	case "dac", "soundcard", "wav":
	default:
		return &parmError{
			parm: "sink.type",
			msg:  "allowed values are [dac, soundcard, wav]",
		}
	}

	if chs := viper.GetInt("sink.channels"); chs < 1 || chs > 2 {
		return &parmError{
			parm: "sink.channels",
			msg:  "allowed values are [1 (Mono), 2 (Stereo)]",
		}
	}

	if viper.GetFloat64("sink.samplerate") <= 0 {
		return &parmError{
			parm: "sink.samplerate",
			msg:  "value must be > 0",
		}
	}

	if viper.GetInt("sink.ring-buffer-length") <= 0 {
		return &parmError{
			parm: "sink.ring-buffer-length",
			msg:  "value must be > 0",
		}
	}

	if sinkType(viper.GetString("sink.type")) == "wav" && viper.GetString("sink.file") == "" {
		return &parmError{
			parm: "sink.file",
			msg:  "a file name is required for the wav sink",
		}
	}

	if viper.GetDuration("broadcast.message-pause") <= 0 {
		return &parmError{
			parm: "broadcast.message-pause",
			msg:  "value must be > 0",
		}
	}

	if p := viper.GetInt("http.port"); p < 0 || p > 65535 {
		return &parmError{
			parm: "http.port",
			msg:  "allowed values are [0...65535] (0 disables the webserver)",
		}
	}

	if _, err := validateSubject(viper.GetString("nats.subject-prefix")); err != nil {
		return &parmError{
			parm: "nats.subject-prefix",
			msg:  err.Error(),
		}
	}

	return nil
}

type parmError struct {
	parm string
	msg  string
}

func (p *parmError) Error() string {
	return fmt.Sprintf("%v: %v\n", p.parm, p.msg)
}

// sinkType returns the normalized sink type.
func sinkType(s string) string {
	switch strings.ToLower(s) {
	case "sc", "soundcard", "speaker":
		return "soundcard"
	}
	return strings.ToLower(s)
}
