// © Copyright 2025-2026, Duet RPC authors
// SPDX-License-Identifier: Apache-2.0

package duetrpc

import (
	"errors"
	"io"
	"iter"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

// Streaming handlers produce and consume lazy, pull-driven message
// sequences typed as iter.Seq2[*M, error]. The sequence contract mirrors the
// wire protocol: at most one non-nil error, and it is always the terminal
// item. Consumers drive progress, so a slow consumer backpressures the
// producer through the transport's own flow control; the bridge adds no
// buffering of its own.

// RecvStream adapts the transport's inbound framed message sequence into a
// transport-agnostic pull stream. Messages are forwarded one-for-one;
// per-item decode failures are lifted into the taxonomy without merging or
// dropping message boundaries.
type RecvStream[I any] struct {
	stream grpc.ServerStream
	stats  *CallStatistics
}

// newRecvStream wraps a transport stream. The type assertion to
// proto.Message happens inside the transport codec on each RecvMsg.
func newRecvStream[I any](stream grpc.ServerStream, stats *CallStatistics) *RecvStream[I] {
	return &RecvStream[I]{stream: stream, stats: stats}
}

// Recv returns the next inbound message. It returns io.EOF when the client
// has closed its side of the stream, and a taxonomy *Error for any other
// failure.
func (s *RecvStream[I]) Recv() (*I, error) {
	m := new(I)
	if err := s.stream.RecvMsg(any(m)); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, errorFromGRPC(err)
	}
	if pm, ok := any(m).(proto.Message); ok && s.stats != nil {
		s.stats.RecordInput(pm)
	}
	return m, nil
}

// Messages returns the inbound sequence as an iterator. A failure is yielded
// as the terminal item; nothing follows it. Normal end of stream simply ends
// the iteration.
func (s *RecvStream[I]) Messages() iter.Seq2[*I, error] {
	return func(yield func(*I, error) bool) {
		for {
			m, err := s.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(m, nil) {
				return
			}
		}
	}
}

// Items builds a finite output sequence from pre-built messages. Intended
// for handlers whose whole response is already in memory.
func Items[M any](items ...*M) iter.Seq2[*M, error] {
	return func(yield func(*M, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// sendAll forwards an output sequence to the transport stream. Each message
// is sent as its own frame; the first error item ends the sequence and
// nothing is emitted after it. The application error and the transport error
// are reported separately so dispatch hooks see the handler outcome.
func sendAll[O any, PO Message[O]](stream grpc.ServerStream, seq iter.Seq2[PO, error], stats *CallStatistics) (appErr, transportErr error) {
	for m, err := range seq {
		if err != nil {
			return err, nil
		}
		if serr := stream.SendMsg(any(m)); serr != nil {
			return nil, serr
		}
		stats.RecordOutput(m)
	}
	return nil, nil
}
