package decap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/StamusNetworks/gopherdecap/pkg/filter"
	"github.com/StamusNetworks/gopherdecap/pkg/fs"
	"github.com/StamusNetworks/gopherdecap/pkg/models"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/sirupsen/logrus"
)

// MaxReadErrors is the number of consecutive unreadable records after which input
// is considered broken and the run ends
const MaxReadErrors = 64

type ErrEarlyExit struct{}

func (e ErrEarlyExit) Error() string { return "early exit" }

// Config holds params needed by Run
type Config struct {
	ID int
	// Full path for input and output PCAP files
	File struct {
		Input  string
		Output string
	}
	// Optional filter, only matching frames are processed and written
	Filter filter.Matcher
	// FilterFor builds the filter once input link type is known, used when Filter is nil
	FilterFor func(layers.LinkType) (filter.Matcher, error)
	// Session is copied for the run, link type is taken from input file
	Session *Session
	// Compress output with gzip
	Compress bool

	StatFunc     func(Result)
	StatInterval time.Duration

	Ctx context.Context
}

// Result summarizes a run
type Result struct {
	ID int `json:"id" yaml:"id"`
	// Read frames, including filtered ones
	Read     int `json:"read" yaml:"read"`
	Filtered int `json:"filtered" yaml:"filtered"`
	Errors   int `json:"errors" yaml:"errors"`

	Outcomes map[string]int `json:"outcomes" yaml:"outcomes"`
	Written  models.Counters `json:"written" yaml:"written"`
	models.Period `yaml:",inline"`

	Output string        `json:"output" yaml:"output"`
	Start  time.Time     `json:"start" yaml:"start"`
	Took   time.Duration `json:"took" yaml:"took"`
	Rate   string        `json:"rate" yaml:"rate"`
}

// Processed is the count of frames that went through decapsulation
func (r Result) Processed() int {
	return r.Read - r.Filtered
}

func (r *Result) snapshot() Result {
	r.Took = time.Since(r.Start)
	r.Rate = fmt.Sprintf("%.2f pps", models.NewRates(models.Counters{Packets: r.Read}, r.Took).PPS)
	c := *r
	c.Outcomes = make(map[string]int, len(r.Outcomes))
	for k, v := range r.Outcomes {
		c.Outcomes[k] = v
	}
	return c
}

// PacketSink receives decapsulated frames, pcapgo.Writer implements it
type PacketSink interface {
	WritePacket(ci gopacket.CaptureInfo, data []byte) error
}

/*
Run decapsulates a capture file, writing every processed frame to output file.
Output keeps input link type. Unreadable records are counted and skipped, write
errors abort the run.
*/
func Run(c *Config) (*Result, error) {
	if c.Session == nil {
		return nil, errors.New("missing decap session")
	}
	input, err := fs.Open(c.File.Input)
	if err != nil {
		return nil, err
	}
	defer input.Close()

	src, err := fs.NewPacketSource(input)
	if err != nil {
		return nil, fmt.Errorf("infile open: %s", err)
	}

	run := *c
	if run.Filter == nil && run.FilterFor != nil {
		if run.Filter, err = run.FilterFor(src.LinkType()); err != nil {
			return nil, fmt.Errorf("filter setup: %s", err)
		}
	}

	output, path, err := fs.Create(c.File.Output, c.Compress)
	if err != nil {
		return nil, fmt.Errorf("outfile create: %s", err)
	}

	w := pcapgo.NewWriter(output)
	if err := w.WriteFileHeader(MaxSnaplen, src.LinkType()); err != nil {
		output.Close()
		return nil, fmt.Errorf("outfile header: %s", err)
	}

	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	session := *c.Session
	session.LinkType = src.LinkType()
	session.Log = session.log().WithField("worker", c.ID)

	res, err := session.Process(ctx, src, w, &run)
	res.Output = path
	if cerr := output.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("outfile close: %s", cerr)
	}
	return res, err
}

// Process reads frames from src until EOF, writing decapsulated frames to sink
func (s *Session) Process(ctx context.Context, src gopacket.PacketDataSource, sink PacketSink, c *Config) (*Result, error) {
	res := &Result{ID: c.ID, Start: time.Now(), Outcomes: make(map[string]int)}

	interval := c.StatInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	report := time.NewTicker(interval)
	defer report.Stop()

	log := s.log()
	var readErrors int
loop:
	for {
		select {
		case <-ctx.Done():
			res.snapshot()
			return res, ErrEarlyExit{}
		case <-report.C:
			if c.StatFunc != nil {
				c.StatFunc(res.snapshot())
			}
		default:
		}

		raw, ci, err := src.ReadPacketData()
		switch {
		case err == io.EOF:
			break loop
		case errors.Is(err, io.ErrUnexpectedEOF):
			res.Errors++
			log.WithError(err).Warn("capture ends with a truncated record")
			break loop
		case err != nil:
			res.Errors++
			readErrors++
			if readErrors >= MaxReadErrors {
				log.WithError(err).Warnf("%d consecutive read errors, giving up on input", readErrors)
				break loop
			}
			log.WithError(err).Debug("unable to read packet")
			continue loop
		}
		readErrors = 0
		res.Read++

		if c.Filter != nil && !c.Filter.Match(ci, raw) {
			res.Filtered++
			log.WithField("packet", res.Read).Debug("packet does not match filter")
			continue loop
		}

		in := NewFrame(ci, raw)
		out, outcome := s.WithPacket(res.Read).Route(in)
		res.Outcomes[outcome.String()]++
		res.Period.Observe(ci.Timestamp)

		if len(out.Data) > MaxSnaplen {
			out.Data = out.Data[:MaxSnaplen]
			out.CaptureLength = MaxSnaplen
		}
		if err := sink.WritePacket(out.CaptureInfo, out.Data); err != nil {
			return res, fmt.Errorf("packet %d write: %w", res.Read, err)
		}
		res.Written.Add(len(out.Data))
	}
	final := res.snapshot()
	return &final, nil
}

// WithPacket returns a shallow copy of session logging under packet number n.
// Session is returned as is when debug logging is off.
func (s *Session) WithPacket(n int) *Session {
	if !s.log().Logger.IsLevelEnabled(logrus.DebugLevel) {
		return s
	}
	c := *s
	c.Log = s.log().WithFields(logrus.Fields{"packet": n})
	return &c
}
