package player

import (
	"time"

	"github.com/zsiec/playcore/internal/codec"
	"github.com/zsiec/playcore/internal/logger"
	"github.com/zsiec/playcore/internal/media"
	"github.com/zsiec/playcore/internal/metrics"
)

// PumpResult reports what one Pump call did.
type PumpResult struct {
	Packets int `json:"packets"`
	Frames  int `json:"frames"`
	// Backpressure is set when the pump stopped because a frame buffer was
	// full. The undelivered frame is held and delivered first next time.
	Backpressure bool `json:"backpressure"`
	EndOfStream  bool `json:"endOfStream"`
}

// Pump is the decode driver. It reads up to budget packets (the configured
// budget when budget <= 0), decodes the selected streams and pushes frames
// into the buffers. It stops early on backpressure or at the end of the
// container. Valid in Ready, Playing and Paused. A demux or decode fault
// moves a playing or paused controller to Error; from Ready the fault is
// returned and the controller stays Ready.
func (c *Controller) Pump(budget int) (PumpResult, error) {
	var res PumpResult
	if !c.state.canPump() {
		return res, c.rejected("pump")
	}
	if budget <= 0 {
		budget = c.cfg.PumpBudget
	}
	start := time.Now()
	defer func() { metrics.RecordPump(time.Since(start)) }()

	for {
		if !c.deliver(&res) {
			res.Backpressure = true
			return res, nil
		}
		if c.eof {
			res.EndOfStream = true
			c.checkEnded()
			return res, nil
		}
		if res.Packets >= budget {
			return res, nil
		}

		pkt, err := c.source.NextPacket()
		if err != nil {
			return res, c.pumpFault(err)
		}
		if pkt == nil {
			if err := c.drainDecoders(); err != nil {
				return res, c.pumpFault(err)
			}
			c.eof = true
			continue
		}
		res.Packets++
		metrics.RecordPacketDemuxed(c.format.String())

		if err := c.decode(pkt); err != nil {
			return res, c.pumpFault(err)
		}
	}
}

// pumpFault records a fault raised while pumping. Error is only entered
// from the playing branch.
func (c *Controller) pumpFault(err error) error {
	if c.state == StateReady {
		c.countError(err)
		c.logger.WithError(err).Warn("Pump fault before playback started")
		return err
	}
	return c.fail(err)
}

// decode feeds pkt to the session of its stream. Packets of streams that
// were not selected are skipped.
func (c *Controller) decode(pkt *media.Packet) error {
	var s *codec.Session
	switch pkt.StreamIndex {
	case c.videoStream:
		s = c.video
	case c.audioStream:
		s = c.audio
	default:
		return nil
	}

	c.logger.DebugWithCategory(logger.CategoryPacketDemux, "Packet demuxed", map[string]interface{}{
		"stream":   pkt.StreamIndex,
		"pts":      pkt.PTS,
		"dts":      pkt.DTS,
		"keyframe": pkt.Keyframe,
		"size":     len(pkt.Payload),
	})

	frame, err := s.Decode(pkt.Payload, pkt.PTS)
	if err != nil {
		return err
	}
	if frame != nil {
		c.decoded(s, frame)
	}
	return nil
}

// drainDecoders flushes both sessions at the end of the container.
func (c *Controller) drainDecoders() error {
	for _, s := range []*codec.Session{c.video, c.audio} {
		if !s.IsInitialized() {
			continue
		}
		frames, err := s.Flush()
		if err != nil {
			return err
		}
		for _, f := range frames {
			c.decoded(s, f)
		}
	}
	return nil
}

func (c *Controller) decoded(s *codec.Session, f media.Frame) {
	metrics.RecordFrameDecoded(s.Kind().String(), s.Params().Codec.String())
	c.logger.DebugWithCategory(logger.CategoryFrameDecode, "Frame decoded", map[string]interface{}{
		"kind": s.Kind().String(),
		"pts":  f.Timestamp(),
	})
	c.pending = append(c.pending, f)
}

// deliver moves pending frames into the buffers in decode order. It returns
// false when the head frame does not fit.
func (c *Controller) deliver(res *PumpResult) bool {
	for len(c.pending) > 0 {
		var err error
		switch f := c.pending[0].(type) {
		case *media.VideoFrame:
			if c.buffers.Video().IsFull() {
				c.backpressure("video")
				return false
			}
			err = c.buffers.PushVideo(f)
		case *media.AudioFrame:
			if c.buffers.Audio().IsFull() {
				c.backpressure("audio")
				return false
			}
			err = c.buffers.PushAudio(f)
		}
		if err != nil {
			// IsFull was checked; a push can only fail on a full queue
			c.backpressure(c.pending[0].Kind().String())
			return false
		}
		c.pending[0] = nil
		c.pending = c.pending[1:]
		res.Frames++
	}
	c.pending = nil
	return true
}

func (c *Controller) backpressure(queue string) {
	metrics.RecordBackpressure(queue)
	c.logger.DebugWithCategory(logger.CategoryBackpressure, "Frame buffer full, pump paused", map[string]interface{}{
		"queue":   queue,
		"pending": len(c.pending),
		"stats":   c.buffers.Stats().String(),
	})
}
