package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/dh1tw/edgeAudio/audio"
	"github.com/dh1tw/edgeAudio/converter"
	"github.com/dh1tw/edgeAudio/tones"
	"github.com/spf13/cobra"
)

var tonesCmd = &cobra.Command{
	Use:   "tones <output.wav>",
	Short: "Render a tone sequence into a wav file",
	Long: `Render a tone sequence into a wav file

With --header the SAME preamble (three bursts) is rendered, optionally
followed by the alert tone (--alert). Without a header only the alert
tone is rendered. --eom appends the end of message bursts.

Example:

$ edgeAudio tones alert.wav --header "ZCZC-WXR-TOR-039173+0030-1051700-KEAX/NWS-" --alert --eom
`,
	Args: cobra.ExactArgs(1),
	Run:  renderTones,
}

func init() {
	RootCmd.AddCommand(tonesCmd)
	tonesCmd.Flags().String("header", "", "SAME header")
	tonesCmd.Flags().Bool("alert", false, "include the alert tone")
	tonesCmd.Flags().Bool("eom", false, "append the end of message bursts")
	tonesCmd.Flags().Bool("silence", true, "include the pause before the message")
	tonesCmd.Flags().Uint32("padding", 0, "padding (bytes) appended to each burst")
}

func renderTones(cmd *cobra.Command, args []string) {

	header, _ := cmd.Flags().GetString("header")
	alert, _ := cmd.Flags().GetBool("alert")
	eom, _ := cmd.Flags().GetBool("eom")
	silence, _ := cmd.Flags().GetBool("silence")
	padding, _ := cmd.Flags().GetUint32("padding")

	if header == "" && !alert && !eom {
		exit(fmt.Errorf("nothing to render; set --header, --alert or --eom"))
	}

	composer, err := tones.Default()
	if err != nil {
		exit(err)
	}

	var data []byte

	switch {
	case header != "":
		b, err := composer.SameAndAlertTones(header, alert, silence, padding)
		if err != nil {
			exit(err)
		}
		data = append(data, b.Bytes()...)
	case alert:
		data = append(data, composer.AlertOnlyTones().Bytes()...)
	}

	if eom {
		b, err := composer.EndOfMessageTones(padding)
		if err != nil {
			exit(err)
		}
		data = append(data, b...)
	}

	conv := converter.New(converter.DisableTool())
	out, err := conv.Convert(context.Background(), data, audio.ULAW, audio.WAV)
	if err != nil {
		exit(err)
	}

	if err := os.WriteFile(args[0], out, 0644); err != nil {
		exit(err)
	}

	fmt.Printf("rendered %.2fs of tones into %s\n",
		float64(len(data))/audio.Samplerate, args[0])
}
