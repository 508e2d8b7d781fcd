package engine

import (
	"fmt"

	"go.uber.org/zap"

	"coral/internal/accel"
	"coral/internal/core"
	"coral/internal/logger"
)

// slot is one pipelined unit of accelerator work. Its buffers and host side
// copies of the batch are only touched while its fence is signaled.
type slot struct {
	index    int
	wg       int
	fence    *accel.Fence
	cb       *accel.CommandBuffer
	inFlight bool

	// host side state of the batch in flight
	cands   []core.Position
	colors  []core.Color
	winners []core.Position
	ok      []bool

	// upload scratch
	candWords  []uint32
	colorWords []uint32

	// capacities in elements, not words
	candCap   int
	batchCap  int
	updateCap int

	staging    *accel.Staging
	updates    *accel.Buffer
	candidates *accel.Buffer
	colorsBuf  *accel.Buffer
	ping       *accel.Buffer
	pong       *accel.Buffer
	readback   *accel.Buffer
}

const (
	deviceStorage = accel.UsageStorage | accel.UsageTransferDst
	levelUsage    = accel.UsageStorage | accel.UsageTransferSrc
	readbackUsage = accel.UsageTransferDst | accel.UsageMapRead
)

// Smallest capacities a slot grows to.
const (
	minCandidates = 64
	minBatch      = 4
	minUpdates    = 64
)

func growTo(have, need, floor int) int {
	if have >= need {
		return have
	}
	n := max(have, floor)
	for n < need {
		n *= 2
	}
	return n
}

// reserve makes sure the slot holds buffers for n candidates, b colors and u
// mirror updates, replacing any that are too small. The slot must be idle.
func (s *slot) reserve(dev *accel.Device, log logger.Logger, n, b, u int) error {
	candCap := growTo(s.candCap, n, minCandidates)
	batchCap := growTo(s.batchCap, b, minBatch)
	updateCap := growTo(s.updateCap, u, minUpdates)
	levels := candCap != s.candCap || batchCap != s.batchCap
	if candCap == s.candCap && batchCap == s.batchCap && updateCap == s.updateCap && s.staging != nil {
		return nil
	}
	log.Debug("growing slot buffers",
		zap.Int("slot", s.index),
		zap.Int("candidates", candCap),
		zap.Int("batch", batchCap),
		zap.Int("updates", updateCap),
	)

	// the score pass leaves one record per workgroup
	levelWords := accel.Groups(candCap, max(1, s.wg)) * batchCap * accel.RecordWords
	type want struct {
		buf       **accel.Buffer
		label     string
		words     int
		usage     accel.Usage
		preferred accel.MemoryFlags
		required  accel.MemoryFlags
		grow      bool
	}
	wants := []want{
		{&s.updates, "updates", 2 * updateCap, deviceStorage, accel.MemoryDeviceLocal, 0, updateCap != s.updateCap},
		{&s.candidates, "candidates", candCap, deviceStorage, accel.MemoryDeviceLocal, 0, candCap != s.candCap},
		{&s.colorsBuf, "colors", batchCap, deviceStorage, accel.MemoryDeviceLocal, 0, batchCap != s.batchCap},
		{&s.ping, "ping", levelWords, levelUsage, accel.MemoryDeviceLocal, 0, levels},
		{&s.pong, "pong", levelWords, levelUsage, accel.MemoryDeviceLocal, 0, levels},
		{&s.readback, "readback", batchCap * accel.RecordWords, readbackUsage, accel.MemoryHostCached, accel.MemoryHostVisible, batchCap != s.batchCap},
	}
	for _, sp := range wants {
		if !sp.grow && *sp.buf != nil {
			continue
		}
		if *sp.buf != nil {
			dev.Destroy(*sp.buf)
			*sp.buf = nil
		}
		buf, err := dev.CreateBuffer(fmt.Sprintf("slot%d/%s", s.index, sp.label), sp.words, sp.usage, sp.preferred, sp.required)
		if err != nil {
			return err
		}
		*sp.buf = buf
	}

	stagingWords := 2*updateCap + candCap + batchCap
	if s.staging == nil || s.staging.Cap() < stagingWords {
		if s.staging != nil {
			dev.Destroy(s.staging.Buffer())
			s.staging = nil
		}
		st, err := dev.CreateStaging(fmt.Sprintf("slot%d/staging", s.index), stagingWords)
		if err != nil {
			return err
		}
		s.staging = st
	}
	s.candCap, s.batchCap, s.updateCap = candCap, batchCap, updateCap
	return nil
}

func (s *slot) release(dev *accel.Device) {
	for _, b := range []*accel.Buffer{s.updates, s.candidates, s.colorsBuf, s.ping, s.pong, s.readback} {
		if b != nil {
			dev.Destroy(b)
		}
	}
	if s.staging != nil {
		dev.Destroy(s.staging.Buffer())
	}
	s.updates, s.candidates, s.colorsBuf, s.ping, s.pong, s.readback, s.staging = nil, nil, nil, nil, nil, nil, nil
	s.candCap, s.batchCap, s.updateCap = 0, 0, 0
}
