package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pngdec.adpollak.net/internal/decoder"
	"pngdec.adpollak.net/internal/images"
	"pngdec.adpollak.net/internal/logging"
)

var (
	maxPixels int64
	ppmPath   string
	verbose   bool
)

var rootCommand = &cobra.Command{
	Use:   "decoder <file.png>",
	Short: "Decode a PNG file and report its contents",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logging.SetVerbose(verbose)

		file, err := os.Open(args[0])
		if err != nil {
			logging.Error().Err(err).Msg("cannot open file")
			os.Exit(1)
		}
		defer file.Close()

		store, info, err := decoder.Decode(file, decoder.Options{MaxPixels: maxPixels})
		if err != nil {
			logging.Error().Err(err).Str("file", args[0]).Msg("decode failed")
			os.Exit(1)
		}
		logging.Info().
			Int("width", info.Width).
			Int("height", info.Height).
			Stringer("kind", store.Kind).
			Msg("decoded")

		if ppmPath != "" {
			if err := writePPM(ppmPath, store); err != nil {
				logging.Error().Err(err).Msg("cannot write ppm")
				os.Exit(1)
			}
			logging.Info().Str("out", ppmPath).Msg("wrote ppm")
		}
	},
}

// writePPM dumps the store as a binary P6 file.
func writePPM(name string, store *images.Store) error {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "P6\n%d %d\n255\n", store.Width, store.Height); err != nil {
		return err
	}
	img := store.Image()
	row := make([]byte, 3*store.Width)
	for y := 0; y < store.Height; y++ {
		for x := 0; x < store.Width; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			row[3*x] = uint8(r >> 8)
			row[3*x+1] = uint8(g >> 8)
			row[3*x+2] = uint8(b >> 8)
		}
		if _, err := file.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCommand.Flags().Int64Var(&maxPixels, "max-pixels", 0, "Reject images with more pixels than this (0 = unbounded)")
	rootCommand.Flags().StringVar(&ppmPath, "ppm", "", "Write the decoded image to this path as a binary PPM")
	rootCommand.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log each chunk as it is decoded (Adam7 passes are not logged individually)")
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
