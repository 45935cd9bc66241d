package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dh1tw/edgeAudio/audio"
	"github.com/dh1tw/edgeAudio/converter"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input> <output>",
	Short: "Convert an audio file",
	Long: `Convert an audio file

The formats are derived from the file extensions (.wav, .mp3, .ul, .pcm).
Raw files (.ul, .pcm) are always 8kHz mono. Conversions which can not be
done natively are delegated to ffmpeg.
`,
	Args: cobra.ExactArgs(2),
	Run:  convert,
}

func init() {
	RootCmd.AddCommand(convertCmd)
	convertCmd.Flags().String("ffmpeg", converter.DefaultFFmpegPath, "path of the ffmpeg executable")
	convertCmd.Flags().Duration("timeout", time.Minute, "maximum duration of the conversion")
}

func convert(cmd *cobra.Command, args []string) {

	ffmpeg, _ := cmd.Flags().GetString("ffmpeg")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	src, err := audio.FormatFromPath(args[0])
	if err != nil {
		exit(err)
	}
	dst, err := audio.FormatFromPath(args[1])
	if err != nil {
		exit(err)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		exit(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conv := converter.New(converter.FFmpegPath(ffmpeg))
	out, err := conv.Convert(ctx, data, src, dst)
	if err != nil {
		exit(err)
	}

	if err := os.WriteFile(args[1], out, 0644); err != nil {
		exit(err)
	}

	fmt.Printf("converted %s (%v) to %s (%v), %d bytes\n", args[0], src, args[1], dst, len(out))
}
