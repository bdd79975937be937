package store

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/alan-christopher/bb84sim/bb84"
)

// A Header describes a stored snapshot without decoding its state.
type Header struct {
	Version     string
	Session     string
	Timestamp   time.Time
	CurrentStep int
	N           int
	Aborted     bool
	KeyBits     int
}

func headerOf(snap bb84.Snapshot) Header {
	h := Header{
		Version:     snap.Version,
		Session:     snap.Session,
		Timestamp:   snap.Timestamp,
		CurrentStep: snap.CurrentStep,
		N:           snap.Config.N,
	}
	if snap.State != nil {
		h.Aborted = snap.State.IsProtocolAborted
		h.KeyBits = len(snap.State.FinalKey)
	}
	return h
}

// EncodeProto writes snap as three frames: a structpb header, a timestamp,
// and the JSON snapshot as a bytes payload.
func EncodeProto(w io.Writer, snap bb84.Snapshot) error {
	f := &protoFramer{w: w}
	h := headerOf(snap)
	header, err := structpb.NewStruct(map[string]interface{}{
		"version":     h.Version,
		"session":     h.Session,
		"currentStep": h.CurrentStep,
		"n":           h.N,
		"aborted":     h.Aborted,
		"keyBits":     h.KeyBits,
	})
	if err != nil {
		return fmt.Errorf("building header: %w", err)
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := f.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := f.Write(timestamppb.New(snap.Timestamp)); err != nil {
		return fmt.Errorf("writing timestamp: %w", err)
	}
	if err := f.Write(wrapperspb.Bytes(payload)); err != nil {
		return fmt.Errorf("writing payload: %w", err)
	}
	return nil
}

// DecodeHeader reads only the leading header and timestamp frames.
func DecodeHeader(r io.Reader) (Header, error) {
	f := &protoFramer{r: r}
	header := &structpb.Struct{}
	if err := f.Read(header); err != nil {
		return Header{}, fmt.Errorf("reading header: %w", err)
	}
	ts := &timestamppb.Timestamp{}
	if err := f.Read(ts); err != nil {
		return Header{}, fmt.Errorf("reading timestamp: %w", err)
	}
	if err := ts.CheckValid(); err != nil {
		return Header{}, fmt.Errorf("reading timestamp: %w", err)
	}
	fields := header.GetFields()
	return Header{
		Version:     fields["version"].GetStringValue(),
		Session:     fields["session"].GetStringValue(),
		Timestamp:   ts.AsTime(),
		CurrentStep: int(fields["currentStep"].GetNumberValue()),
		N:           int(fields["n"].GetNumberValue()),
		Aborted:     fields["aborted"].GetBoolValue(),
		KeyBits:     int(fields["keyBits"].GetNumberValue()),
	}, nil
}

// DecodeProto reads a snapshot written by EncodeProto.
func DecodeProto(r io.Reader) (bb84.Snapshot, Header, error) {
	h, err := DecodeHeader(r)
	if err != nil {
		return bb84.Snapshot{}, Header{}, err
	}
	payload := &wrapperspb.BytesValue{}
	if err := (&protoFramer{r: r}).Read(payload); err != nil {
		return bb84.Snapshot{}, Header{}, fmt.Errorf("reading payload: %w", err)
	}
	snap, err := bb84.ParseSnapshot(payload.GetValue())
	if err != nil {
		return bb84.Snapshot{}, Header{}, err
	}
	if snap.Version != h.Version || snap.CurrentStep != h.CurrentStep {
		return bb84.Snapshot{}, Header{}, fmt.Errorf(
			"header (version %q, step %d) disagrees with payload (version %q, step %d)",
			h.Version, h.CurrentStep, snap.Version, snap.CurrentStep)
	}
	return snap, h, nil
}
