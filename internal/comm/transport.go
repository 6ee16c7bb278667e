package comm

import (
	"encoding/binary"
	"sync"
)

// maxSetParamPayload bounds the serialized size of a SET_PARAM command;
// larger payloads are silently dropped rather than fragmented, matching
// spec.md 4.H's "transport drops oversize SET_PARAM" rule. The cluster
// wire format below this abstraction is out of scope (spec.md 1); this
// type only models the drop behaviour at the command-queue boundary.
const maxSetParamPayload = 256

// TransportLink is the serialized-byte-buffer Communicator
// implementation: every command is marshaled to a fixed-capacity byte
// slice before being queued, as a real cluster transport would. Grounded
// on the teacher's fixed 16-byte record style in internal/book/book.go's
// Polyglot reader, generalized to a small tagged-command encoding.
type TransportLink struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  [][]byte
	types  []CommandType
	closed bool
}

// NewTransportLink creates an empty, open link.
func NewTransportLink() *TransportLink {
	l := &TransportLink{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Send serializes cmd and enqueues it, applying the same per-type
// coalescing as InProcLink, plus the SET_PARAM size-drop rule.
func (l *TransportLink) Send(cmd Command) {
	buf, ok := encodeCommand(cmd)
	if !ok {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	if startsOrStops(cmd.Type) {
		l.sweepStartStop()
		l.queue = append(l.queue, buf)
		l.types = append(l.types, cmd.Type)
		l.cond.Signal()
		return
	}
	if cmd.Type == ReportStats {
		for i := range l.types {
			if l.types[i] == ReportStats {
				folded := foldReportStats(decodeCommand(l.queue[i]), cmd)
				if encoded, ok := encodeCommand(folded); ok {
					l.queue[i] = encoded
				}
				l.cond.Signal()
				return
			}
		}
		l.queue = append(l.queue, buf)
		l.types = append(l.types, cmd.Type)
		l.cond.Signal()
		return
	}
	if coalesces(cmd.Type) {
		for i := range l.types {
			if l.types[i] == cmd.Type {
				l.queue[i] = buf
				l.cond.Signal()
				return
			}
		}
	}
	l.queue = append(l.queue, buf)
	l.types = append(l.types, cmd.Type)
	l.cond.Signal()
}

// sweepStartStop removes any pending StartSearch, StopSearch or
// ReportResult from the queue, mirroring InProcLink.sweepStartStop.
// Caller holds l.mu.
func (l *TransportLink) sweepStartStop() {
	keptQueue := l.queue[:0]
	keptTypes := l.types[:0]
	for i, t := range l.types {
		if t == StartSearch || t == StopSearch || t == ReportResult {
			continue
		}
		keptQueue = append(keptQueue, l.queue[i])
		keptTypes = append(keptTypes, t)
	}
	l.queue = keptQueue
	l.types = keptTypes
}

// Recv dequeues and deserializes the next command.
func (l *TransportLink) Recv() (Command, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.queue) == 0 && !l.closed {
		l.cond.Wait()
	}
	if len(l.queue) == 0 && l.closed {
		return Command{}, false
	}
	buf := l.queue[0]
	l.queue = l.queue[1:]
	l.types = l.types[1:]
	return decodeCommand(buf), true
}

// Close shuts the link down.
func (l *TransportLink) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.cond.Broadcast()
}

// transportHeaderSize is type(1) + jobID(8) + nodes(8) +
// hashFullPermille(4) + nameLen(1).
const transportHeaderSize = 22

// encodeCommand serializes the Command fields meaningful over the
// wire: type, job id, the REPORT_STATS counters (Nodes,
// HashFullPermille — always carried so a ReportStats command never
// decodes zeroed, and harmless zero bytes for every other command
// type), and for SET_PARAM the name/value pair (dropped if it would
// exceed maxSetParamPayload). Other command types (search position/PV)
// are pointer-carrying and are not meant to cross a real transport
// boundary in this design; this path exists to exercise the drop rule,
// the REPORT_STATS payload, and FIFO/coalescing semantics end to end.
func encodeCommand(cmd Command) ([]byte, bool) {
	if cmd.Type == SetParam {
		payload := len(cmd.ParamName) + len(cmd.ParamValue)
		if payload > maxSetParamPayload {
			return nil, false
		}
	}
	out := make([]byte, transportHeaderSize, transportHeaderSize+len(cmd.ParamName)+len(cmd.ParamValue))
	out[0] = byte(cmd.Type)
	binary.LittleEndian.PutUint64(out[1:9], cmd.JobID)
	binary.LittleEndian.PutUint64(out[9:17], cmd.Nodes)
	binary.LittleEndian.PutUint32(out[17:21], uint32(int32(cmd.HashFullPermille)))
	out[21] = byte(len(cmd.ParamName))
	out = append(out, []byte(cmd.ParamName)...)
	out = append(out, []byte(cmd.ParamValue)...)
	return out, true
}

func decodeCommand(buf []byte) Command {
	if len(buf) < transportHeaderSize {
		return Command{}
	}
	cmd := Command{
		Type:             CommandType(buf[0]),
		JobID:            binary.LittleEndian.Uint64(buf[1:9]),
		Nodes:            binary.LittleEndian.Uint64(buf[9:17]),
		HashFullPermille: int(int32(binary.LittleEndian.Uint32(buf[17:21]))),
	}
	nameLen := int(buf[21])
	rest := buf[transportHeaderSize:]
	if nameLen <= len(rest) {
		cmd.ParamName = string(rest[:nameLen])
		cmd.ParamValue = string(rest[nameLen:])
	}
	return cmd
}
