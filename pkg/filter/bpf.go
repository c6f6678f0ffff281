package filter

import (
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"golang.org/x/net/bpf"
)

// ErrBPFUnsupported is returned when a program uses instructions the VM can not run
var ErrBPFUnsupported = errors.New("bpf program uses unsupported instructions")

/*
BPFMatcher runs a compiled classic BPF program over raw frames, in the way
pcap_offline_filter does. A frame matches when program returns a non zero
snapshot length.
*/
type BPFMatcher struct {
	vm *bpf.VM
}

// NewBPFMatcher loads a raw program, as emitted by libpcap compiler
func NewBPFMatcher(raw []bpf.RawInstruction) (*BPFMatcher, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty bpf program")
	}
	insts, ok := bpf.Disassemble(raw)
	if !ok {
		return nil, ErrBPFUnsupported
	}
	vm, err := bpf.NewVM(insts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBPFUnsupported, err)
	}
	return &BPFMatcher{vm: vm}, nil
}

func (m *BPFMatcher) Match(ci gopacket.CaptureInfo, data []byte) bool {
	n, err := m.vm.Run(data)
	return err == nil && n > 0
}
