package audio

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// PCMBlockSize is the number of 16-bit samples read per analyser block.
const PCMBlockSize = FFTSize

// ReadPCM reads signed 16-bit little-endian mono audio from r and feeds
// the analyser block by block until r ends or ctx is cancelled.
func ReadPCM(ctx context.Context, r io.Reader, a *ReactiveAnalyzer) error {
	br := bufio.NewReaderSize(r, PCMBlockSize*2)
	raw := make([]int16, PCMBlockSize)
	block := make([]float64, PCMBlockSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := binary.Read(br, binary.LittleEndian, raw); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("read pcm: %w", err)
		}
		for i, s := range raw {
			block[i] = float64(s) / 32768
		}
		a.Feed(block)
	}
}

// Monitor runs a capture command that writes s16le mono PCM to stdout
// (for example ffmpeg reading the default input) and feeds the analyser
// until ctx is cancelled.
func Monitor(ctx context.Context, command []string, a *ReactiveAnalyzer) error {
	if len(command) == 0 {
		return errors.New("audio monitor: empty command")
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("audio monitor: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("audio monitor: start %s: %w", command[0], err)
	}

	readErr := ReadPCM(ctx, stdout, a)
	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if readErr != nil {
		return readErr
	}
	return waitErr
}
