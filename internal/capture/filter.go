package capture

import (
	"fmt"

	"golang.org/x/net/bpf"
)

const (
	etherTypeOffset = 12
	ipProtoOffset   = 14 + 9
	etherTypeIPv4   = 0x0800
	snapLen         = 0x40000
)

// FilterProgram is "ether proto ip and ip proto igmp" as classic BPF.
func FilterProgram() []bpf.Instruction {
	return []bpf.Instruction{
		bpf.LoadAbsolute{Off: etherTypeOffset, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: etherTypeIPv4, SkipTrue: 3},
		bpf.LoadAbsolute{Off: ipProtoOffset, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: uint32(AnnouncementProtocol), SkipTrue: 1},
		bpf.RetConstant{Val: snapLen},
		bpf.RetConstant{Val: 0},
	}
}

func assembleFilter() ([]bpf.RawInstruction, error) {
	raw, err := bpf.Assemble(FilterProgram())
	if err != nil {
		return nil, fmt.Errorf("failed to assemble capture filter: %w", err)
	}
	return raw, nil
}
