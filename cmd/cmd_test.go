package cmd

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSubject(t *testing.T) {
	s, err := validateSubject("edge.site 1.audio")
	require.NoError(t, err)
	assert.Equal(t, "edge.site_1.audio", s)

	for _, in := range []string{"", "edge.*", "edge.>", ".edge", "edge.", "edge..audio"} {
		_, err := validateSubject(in)
		assert.Error(t, err, in)
	}
}

func TestCheckParameterValues(t *testing.T) {
	defer viper.Reset()

	set := func() {
		viper.Reset()
		viper.Set("sink.type", "dac")
		viper.Set("sink.channels", 1)
		viper.Set("sink.samplerate", 48000.0)
		viper.Set("sink.ring-buffer-length", 10)
		viper.Set("http.port", 9090)
		viper.Set("nats.subject-prefix", "edge.audio")
		viper.Set("broadcast.message-pause", 2*time.Second)
	}

	set()
	assert.NoError(t, checkParameterValues())

	set()
	viper.Set("sink.type", "alsa")
	err := checkParameterValues()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink.type")

	set()
	viper.Set("sink.channels", 3)
	assert.Error(t, checkParameterValues())

	set()
	viper.Set("sink.type", "wav")
	err = checkParameterValues()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink.file")

	set()
	viper.Set("nats.subject-prefix", "edge.>")
	assert.Error(t, checkParameterValues())

	for _, d := range []time.Duration{0, -time.Second} {
		set()
		viper.Set("broadcast.message-pause", d)
		err = checkParameterValues()
		require.Error(t, err, d)
		assert.Contains(t, err.Error(), "broadcast.message-pause")
	}
}

func TestSinkType(t *testing.T) {
	assert.Equal(t, "soundcard", sinkType("SC"))
	assert.Equal(t, "dac", sinkType("DAC"))
}
