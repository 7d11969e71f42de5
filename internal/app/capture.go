// Package app provides application-level orchestration for icmpwatch.
package app

import (
	"fmt"

	"github.com/Zerofisher/icmpwatch/capture"
	"github.com/Zerofisher/icmpwatch/internal/config"
)

// CaptureResult holds the result of SetupCapturer.
type CaptureResult struct {
	Capturer *capture.Capturer
	Recorder *capture.PcapWriter // nil unless recording
	Source   string              // interface name or file path
}

// Close releases the recorder. The capturer closes itself when stopped.
func (r *CaptureResult) Close() error {
	if r.Recorder == nil {
		return nil
	}
	return r.Recorder.Close()
}

// SetupCapturer opens a file replay when PcapFile is set, otherwise a live
// capture on Interface (or the default device).
func SetupCapturer(cfg config.CaptureConfig) (*CaptureResult, error) {
	var (
		capturer *capture.Capturer
		source   string
		err      error
	)

	if cfg.PcapFile != "" {
		source = cfg.PcapFile
		capturer, err = capture.NewFileCapturer(source, cfg.Filter)
		if err == nil {
			capturer.SetRealtime(cfg.Realtime)
		}
	} else {
		source = cfg.Interface
		if source == "" {
			if source, err = capture.DefaultInterface(); err != nil {
				return nil, err
			}
		}
		capturer, err = capture.NewLiveCapturer(source, cfg.Filter)
	}
	if err != nil {
		return nil, fmt.Errorf("error opening source: %w", err)
	}

	result := &CaptureResult{Capturer: capturer, Source: source}

	if cfg.WritePcap != "" {
		w, err := capture.NewPcapWriterWithLinkType(cfg.WritePcap, capturer.LinkType())
		if err != nil {
			capturer.Stop()
			return nil, err
		}
		capturer.SetRecorder(w)
		result.Recorder = w
	}

	return result, nil
}
