package fabric

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"strings"
)

// DefaultFormat is reported when a stream carries no content events.
const DefaultFormat = "text"

const (
	dataPrefix    = "data:"
	maxLineLength = 1 << 20
)

// Event is one decoded SSE data payload. The set of implementations is
// closed: ContentEvent, CompleteEvent, ErrorEvent and UnknownEvent.
type Event interface {
	isEvent()
}

// ContentEvent carries an incremental chunk of pattern output.
type ContentEvent struct {
	Content string
	Format  string
}

// CompleteEvent marks the successful end of the stream.
type CompleteEvent struct{}

// ErrorEvent is an error reported by Fabric inside the stream.
type ErrorEvent struct {
	Message string
}

// UnknownEvent is any event with a type this package does not handle.
type UnknownEvent struct {
	Type string
}

func (ContentEvent) isEvent()  {}
func (CompleteEvent) isEvent() {}
func (ErrorEvent) isEvent()    {}
func (UnknownEvent) isEvent()  {}

// wireEvent is the JSON shape of a Fabric stream event.
type wireEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Format  string `json:"format"`
}

// DecodeEvent decodes a single data payload into an Event.
func DecodeEvent(payload string) (Event, error) {
	// Events are JSON objects; null, arrays and scalars are malformed.
	if !strings.HasPrefix(strings.TrimSpace(payload), "{") {
		return nil, &MalformedDataError{Data: payload, Err: errors.New("event is not a JSON object")}
	}

	var w wireEvent
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return nil, &MalformedDataError{Data: payload, Err: err}
	}

	switch w.Type {
	case "content":
		format := w.Format
		if format == "" {
			format = DefaultFormat
		}
		return ContentEvent{Content: w.Content, Format: format}, nil
	case "complete":
		return CompleteEvent{}, nil
	case "error":
		return ErrorEvent{Message: w.Content}, nil
	default:
		return UnknownEvent{Type: w.Type}, nil
	}
}

// Result is the aggregated output of a pattern run.
type Result struct {
	OutputText   string `json:"output_text"`
	OutputFormat string `json:"output_format"`
}

// Aggregator folds the lines of a Fabric SSE stream into a Result.
//
// Lines that are not data lines (blank lines, comments, event names) are
// ignored. A malformed data payload aborts aggregation: it is never skipped.
// The zero value is not usable; call NewAggregator.
type Aggregator struct {
	text      strings.Builder
	format    string
	events    int
	completed bool
}

// NewAggregator returns an Aggregator in its initial state.
func NewAggregator() *Aggregator {
	return &Aggregator{format: DefaultFormat}
}

// Feed consumes one line. It returns done=true once a complete event has been
// seen; further lines must not be fed after that. An error event yields an
// *APIError and a malformed payload a *MalformedDataError.
func (a *Aggregator) Feed(line string) (done bool, err error) {
	if a.completed {
		return true, nil
	}

	payload, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return false, nil
	}
	payload = strings.TrimLeft(payload, " \t")
	if strings.TrimSpace(payload) == "" {
		return false, nil
	}

	ev, err := DecodeEvent(payload)
	if err != nil {
		return false, err
	}
	a.events++

	switch e := ev.(type) {
	case ContentEvent:
		a.text.WriteString(e.Content)
		a.format = e.Format
	case CompleteEvent:
		a.completed = true
		return true, nil
	case ErrorEvent:
		return false, &APIError{Message: e.Message}
	case UnknownEvent:
		// forward compatible: unknown event types are ignored
	}
	return false, nil
}

// Finish reports the aggregated result, or why the stream is unusable.
func (a *Aggregator) Finish() (*Result, error) {
	if a.completed {
		return &Result{OutputText: a.text.String(), OutputFormat: a.format}, nil
	}
	if a.events == 0 {
		return nil, &EmptyStreamError{}
	}
	return nil, &IncompleteStreamError{Events: a.events}
}

// Aggregate consumes lines until a terminal event and returns the result.
// Lines after a complete event are not pulled from the sequence.
func Aggregate(lines iter.Seq[string]) (*Result, error) {
	agg := NewAggregator()
	for line := range lines {
		done, err := agg.Feed(line)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}
	return agg.Finish()
}

// AggregateReader reads an SSE body line by line and aggregates it. A read
// failure mid-stream is reported as a *ConnectionError for url.
func AggregateReader(r io.Reader, url string) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	agg := NewAggregator()
	for scanner.Scan() {
		done, err := agg.Feed(scanner.Text())
		if err != nil {
			return nil, err
		}
		if done {
			return agg.Finish()
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &MalformedDataError{Err: err}
		}
		return nil, &ConnectionError{URL: url, Err: err}
	}
	return agg.Finish()
}

// Lines returns a sequence over the given lines, mainly for tests and
// callers that already hold a buffered response.
func Lines(lines ...string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, l := range lines {
			if !yield(l) {
				return
			}
		}
	}
}
