package models

import "time"

// Period tracks the first and last capture timestamp seen in a stream of frames
type Period struct {
	Beginning time.Time `json:"beginning" yaml:"beginning"`
	End       time.Time `json:"end" yaml:"end"`
}

func (p Period) Duration() time.Duration {
	return p.End.Sub(p.Beginning)
}

// Observe widens the period so that it contains ts
func (p *Period) Observe(ts time.Time) {
	if ts.IsZero() {
		return
	}
	if p.Beginning.IsZero() || ts.Before(p.Beginning) {
		p.Beginning = ts
	}
	if p.End.IsZero() || ts.After(p.End) {
		p.End = ts
	}
}

// Counters accumulates frame count and byte volume
type Counters struct {
	Packets       int `json:"packets" yaml:"packets"`
	Size          int `json:"size" yaml:"size"`
	MaxPacketSize int `json:"max_packet_size" yaml:"max_packet_size"`
}

// Add accounts one frame of given size
func (c *Counters) Add(size int) {
	c.Packets++
	c.Size += size
	if size > c.MaxPacketSize {
		c.MaxPacketSize = size
	}
}

func (c Counters) PPS(interval time.Duration) float64 {
	if interval <= 0 {
		return 0
	}
	return float64(c.Packets) / interval.Seconds()
}

type Rates struct {
	PPS           float64       `json:"pps" yaml:"pps"`
	Duration      time.Duration `json:"duration" yaml:"duration"`
	DurationHuman string        `json:"duration_human" yaml:"duration_human"`
}

// NewRates computes rates for counters collected over a wall clock duration
func NewRates(c Counters, took time.Duration) Rates {
	return Rates{
		PPS:           c.PPS(took),
		Duration:      took,
		DurationHuman: took.String(),
	}
}
