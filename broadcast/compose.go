package broadcast

import (
	"context"
	"fmt"

	"github.com/dh1tw/edgeAudio/audio"
)

// compose assembles the complete on-air audio of a message: the sound
// files converted to μ-law, framed by the tones requested by its flags.
//
//	SameTones: preamble [alert] pause | audio | eom
//	AlertTone: alert pause | audio
func (s *Scheduler) compose(ctx context.Context, msg Message) ([]byte, error) {

	var body []byte

	for _, f := range msg.SoundFiles {
		format, err := audio.FormatFromPath(f)
		if err != nil {
			return nil, err
		}

		data, err := s.options.ReadFile(f)
		if err != nil {
			return nil, err
		}

		ulaw, err := s.options.Converter.Convert(ctx, data, format, audio.ULAW)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}

		body = append(body, ulaw...)
	}

	composer := s.options.Composer

	switch {
	case msg.SameTones:
		pre, err := composer.SameAndAlertTones(msg.SameHeader, msg.AlertTone, true, msg.Padding)
		if err != nil {
			return nil, err
		}
		eom, err := composer.EndOfMessageTones(msg.Padding)
		if err != nil {
			return nil, err
		}
		res := make([]byte, 0, pre.Len()+len(body)+len(eom))
		res = append(res, pre.Bytes()...)
		res = append(res, body...)
		return append(res, eom...), nil

	case msg.AlertTone:
		pre := composer.AlertOnlyTones()
		res := make([]byte, 0, pre.Len()+len(body))
		res = append(res, pre.Bytes()...)
		return append(res, body...), nil
	}

	return body, nil
}
