// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// recordingBitDepth is the WAV sample width for captured audio.
const recordingBitDepth = 16

// StartRecording begins writing the analyzed mono signal to a WAV
// file. The same mixdown that feeds the analyzer is captured, so a
// recording can be replayed through Analyze to reproduce a
// measurement.
func (e *Engine) StartRecording(filename string) error {
	if atomic.LoadInt32(&e.isRecording) == 1 {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	e.outputFile = file

	e.wavEncoder = wav.NewEncoder(file, int(e.sampleRate), recordingBitDepth, 1, 1)

	e.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  int(e.sampleRate),
		},
		SourceBitDepth: recordingBitDepth,
		Data:           make([]int, e.cfg.FramesPerBuffer),
	}

	atomic.StoreInt32(&e.isRecording, 1)
	return nil
}

// StopRecording flushes and closes the WAV file. A no-op when not
// recording.
func (e *Engine) StopRecording() error {
	if atomic.LoadInt32(&e.isRecording) == 0 {
		return nil
	}

	atomic.StoreInt32(&e.isRecording, 0)

	if e.wavEncoder != nil {
		if err := e.wavEncoder.Close(); err != nil {
			return err
		}
		e.wavEncoder = nil
	}
	if e.outputFile != nil {
		if err := e.outputFile.Close(); err != nil {
			return err
		}
		e.outputFile = nil
	}
	return nil
}

// writeRecording converts the current mono block to integer samples
// and appends it to the WAV file. Called from the audio callback only
// while the recording flag is set.
func (e *Engine) writeRecording(frames int) {
	const scale = 1<<(recordingBitDepth-1) - 1

	e.sampleBuf.Data = e.sampleBuf.Data[:frames]
	for i := 0; i < frames; i++ {
		e.sampleBuf.Data[i] = int(e.mono[i] * scale)
	}

	if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
		// Logging from the callback is avoided elsewhere, but a failed
		// disk write is worth the one-off cost; recording then stops.
		atomic.StoreInt32(&e.isRecording, 0)
	}
}
