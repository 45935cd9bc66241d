// Copyright © 2016 Tobias Wellnitz, DH1TW <Tobias.Wellnitz@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dh1tw/edgeAudio/audio"
	"github.com/dh1tw/edgeAudio/audio/sinks/dacWriter"
	"github.com/dh1tw/edgeAudio/audio/sinks/scWriter"
	"github.com/dh1tw/edgeAudio/audio/sinks/wavWriter"
	"github.com/dh1tw/edgeAudio/broadcast"
	"github.com/dh1tw/edgeAudio/converter"
	"github.com/dh1tw/edgeAudio/ingest"
	"github.com/dh1tw/edgeAudio/tones"
	"github.com/dh1tw/edgeAudio/webserver"
	"github.com/gordonklaus/portaudio"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the broadcast scheduler",
	Long: `Run the broadcast scheduler

Messages and playlists are received through NATS on the subjects
<subject-prefix>.message and <subject-prefix>.playlist. The scheduler
plays the normal playlist in a loop; messages of the interrupt playlist
always pre-empt the normal broadcast.

The audio is written to one of the following sinks:

  dac        the broadcast exciter (RTP over UDP)
  soundcard  a local audio device, see

             $ edgeAudio(.exe) enumerate

  wav        a wav file (for recordings and tests)
`,
	Run: serve,
}

func init() {
	RootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("sink", "s", "dac", "audio sink [dac, soundcard, wav]")
	serveCmd.Flags().String("dac-address", "127.0.0.1:5004", "address of the broadcast exciter")
	serveCmd.Flags().Uint32("dac-ssrc", 1, "RTP synchronization source")
	serveCmd.Flags().Bool("dac-require-sync", false, "refuse to play while the exciter heartbeat is lost")
	serveCmd.Flags().StringP("output-device-name", "o", "default", "Output device")
	serveCmd.Flags().String("hostapi", "default", "Host API of the output device")
	serveCmd.Flags().Float64("output-device-samplerate", 48000, "Output device sampling rate")
	serveCmd.Flags().Duration("output-device-latency", time.Millisecond*10, "Output latency")
	serveCmd.Flags().Int("output-device-channels", 1, "Output Channels")
	serveCmd.Flags().Int("frame-length", 480, "Frames per buffer")
	serveCmd.Flags().Float32("volume", 0.7, "volume of the soundcard [0...1]")
	serveCmd.Flags().Int("rx-buffer-length", 10, "Ring buffer length (frames)")
	serveCmd.Flags().String("file", "", "file name of the wav sink")
	serveCmd.Flags().BoolP("monitor", "m", false, "additionally play the audio on the soundcard")

	serveCmd.Flags().StringP("broker-url", "u", "localhost", "Broker URL")
	serveCmd.Flags().IntP("broker-port", "p", 4222, "Broker Port")
	serveCmd.Flags().StringP("password", "P", "", "NATS Password")
	serveCmd.Flags().StringP("username", "U", "", "NATS Username")
	serveCmd.Flags().String("subject-prefix", "edge.audio", "NATS subject prefix")

	serveCmd.Flags().String("http-host", "127.0.0.1", "Host (use '0.0.0.0' to listen on all network adapters)")
	serveCmd.Flags().Int("http-port", 9090, "Port of the status api (0 disables it)")

	serveCmd.Flags().Duration("message-pause", time.Second*2, "pause between two messages")
	serveCmd.Flags().Bool("delete-files", true, "delete the sound files of evicted messages")
	serveCmd.Flags().String("ffmpeg", converter.DefaultFFmpegPath, "path of the ffmpeg executable")
	serveCmd.Flags().String("tempdir", "", "directory for temporary transcoding files")

	viper.BindPFlag("sink.type", serveCmd.Flags().Lookup("sink"))
	viper.BindPFlag("sink.address", serveCmd.Flags().Lookup("dac-address"))
	viper.BindPFlag("sink.ssrc", serveCmd.Flags().Lookup("dac-ssrc"))
	viper.BindPFlag("sink.require-sync", serveCmd.Flags().Lookup("dac-require-sync"))
	viper.BindPFlag("sink.device-name", serveCmd.Flags().Lookup("output-device-name"))
	viper.BindPFlag("sink.hostapi", serveCmd.Flags().Lookup("hostapi"))
	viper.BindPFlag("sink.samplerate", serveCmd.Flags().Lookup("output-device-samplerate"))
	viper.BindPFlag("sink.latency", serveCmd.Flags().Lookup("output-device-latency"))
	viper.BindPFlag("sink.channels", serveCmd.Flags().Lookup("output-device-channels"))
	viper.BindPFlag("sink.frame-length", serveCmd.Flags().Lookup("frame-length"))
	viper.BindPFlag("sink.volume", serveCmd.Flags().Lookup("volume"))
	viper.BindPFlag("sink.ring-buffer-length", serveCmd.Flags().Lookup("rx-buffer-length"))
	viper.BindPFlag("sink.file", serveCmd.Flags().Lookup("file"))
	viper.BindPFlag("sink.monitor", serveCmd.Flags().Lookup("monitor"))

	viper.BindPFlag("nats.broker-url", serveCmd.Flags().Lookup("broker-url"))
	viper.BindPFlag("nats.broker-port", serveCmd.Flags().Lookup("broker-port"))
	viper.BindPFlag("nats.password", serveCmd.Flags().Lookup("password"))
	viper.BindPFlag("nats.username", serveCmd.Flags().Lookup("username"))
	viper.BindPFlag("nats.subject-prefix", serveCmd.Flags().Lookup("subject-prefix"))

	viper.BindPFlag("http.host", serveCmd.Flags().Lookup("http-host"))
	viper.BindPFlag("http.port", serveCmd.Flags().Lookup("http-port"))

	viper.BindPFlag("broadcast.message-pause", serveCmd.Flags().Lookup("message-pause"))
	viper.BindPFlag("broadcast.delete-files", serveCmd.Flags().Lookup("delete-files"))
	viper.BindPFlag("converter.ffmpeg", serveCmd.Flags().Lookup("ffmpeg"))
	viper.BindPFlag("converter.tempdir", serveCmd.Flags().Lookup("tempdir"))
}

func serve(cmd *cobra.Command, args []string) {

	readConfig()

	// check if values from config file / pflags are valid
	if err := checkParameterValues(); err != nil {
		exit(err)
	}

	// validated before
	subjectPrefix, _ := validateSubject(viper.GetString("nats.subject-prefix"))

	natsUsername := viper.GetString("nats.username")
	natsPassword := viper.GetString("nats.password")
	natsBrokerURL := viper.GetString("nats.broker-url")
	natsBrokerPort := viper.GetInt("nats.broker-port")
	natsAddr := fmt.Sprintf("nats://%s:%v", natsBrokerURL, natsBrokerPort)

	httpHost := viper.GetString("http.host")
	httpPort := viper.GetInt("http.port")

	primary, err := newSink(sinkType(viper.GetString("sink.type")))
	if err != nil {
		exit(err)
	}

	sink := audio.NewRouter()
	sink.AddSink(sinkType(viper.GetString("sink.type")), primary, true)

	usesSoundcard := sinkType(viper.GetString("sink.type")) == "soundcard"

	if viper.GetBool("sink.monitor") && !usesSoundcard {
		monitor, err := newSink("soundcard")
		if err != nil {
			exit(err)
		}
		sink.AddSink("monitor", monitor, true)
		usesSoundcard = true
	}

	conv := converter.New(
		converter.FFmpegPath(viper.GetString("converter.ffmpeg")),
		converter.TempDir(viper.GetString("converter.tempdir")),
	)

	composer, err := tones.Default()
	if err != nil {
		exit(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// both are set before the scheduler is started
	var web *webserver.WebServer
	var natsSrc *ingest.NatsSource

	stateChanged := func(st broadcast.State) {
		if web != nil {
			web.Update(st)
		}
		if natsSrc != nil {
			natsSrc.PublishState(st)
		}
	}

	sched, err := broadcast.New(sink,
		broadcast.WithConverter(conv),
		broadcast.WithComposer(composer),
		broadcast.MessagePause(viper.GetDuration("broadcast.message-pause")),
		broadcast.DeleteFiles(viper.GetBool("broadcast.delete-files")),
		broadcast.StateChanged(stateChanged),
		broadcast.Registerer(reg),
	)
	if err != nil {
		exit(err)
	}

	// start from default nats config and add the common options
	nopts := nats.GetDefaultOptions()
	nopts.Servers = []string{natsAddr}
	nopts.User = natsUsername
	nopts.Password = natsPassword
	nopts.MaxReconnect = -1
	// we want to set the nats.Options.Name so that we can distinguish
	// them when monitoring the nats server with nats-top
	nopts.Name = subjectPrefix + ":ingest"

	natsSrc = ingest.NewNatsSource(sched,
		ingest.SubjectPrefix(subjectPrefix),
		ingest.NatsOptions(nopts),
	)

	if httpPort > 0 {
		web = webserver.NewWebServer(sched,
			webserver.Address(httpHost),
			webserver.Port(httpPort),
			webserver.Gatherer(reg),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := natsSrc.Connect(); err != nil {
		exit(err)
	}

	if err := sched.Start(ctx); err != nil {
		exit(err)
	}

	if web != nil {
		go func() {
			if err := web.ListenAndServe(ctx); err != nil {
				log.Println(err)
			}
		}()
	}

	// Channel to handle OS signals
	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, os.Interrupt, syscall.SIGTERM)

	sig := <-osSignals
	log.Printf("received %v, shutting down\n", sig)

	natsSrc.Close()
	sched.Stop()
	cancel()
	if err := sink.Close(); err != nil {
		log.Println(err)
	}
	if usesSoundcard {
		portaudio.Terminate()
	}
}

// newSink returns an audio sink of the given type.
func newSink(sType string) (audio.Sink, error) {

	switch sType {
	case "soundcard":
		if err := portaudio.Initialize(); err != nil {
			return nil, err
		}
		w, err := scWriter.NewScWriter(
			scWriter.HostAPI(viper.GetString("sink.hostapi")),
			scWriter.DeviceName(viper.GetString("sink.device-name")),
			scWriter.Channels(viper.GetInt("sink.channels")),
			scWriter.Samplerate(viper.GetFloat64("sink.samplerate")),
			scWriter.Latency(viper.GetDuration("sink.latency")),
			scWriter.RingBufferSize(viper.GetInt("sink.ring-buffer-length")),
			scWriter.FramesPerBuffer(viper.GetInt("sink.frame-length")),
			scWriter.Volume(float32(viper.GetFloat64("sink.volume"))),
		)
		if err != nil {
			return nil, err
		}
		if err := w.Start(); err != nil {
			w.Close()
			return nil, err
		}
		return w, nil

	case "wav":
		w, err := wavWriter.NewWavWriter(viper.GetString("sink.file"),
			wavWriter.Samplerate(viper.GetFloat64("sink.samplerate")))
		if err != nil {
			return nil, err
		}
		return w, nil
	}

	w, err := dacWriter.NewDacWriter(
		dacWriter.Address(viper.GetString("sink.address")),
		dacWriter.SSRC(viper.GetUint32("sink.ssrc")),
		dacWriter.RequireSync(viper.GetBool("sink.require-sync")),
	)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// exit prints the error to stderr, stops portaudio and returns with exit
// code 1
func exit(err error) {
	fmt.Fprintln(os.Stderr, err)
	portaudio.Terminate()
	os.Exit(1)
}
