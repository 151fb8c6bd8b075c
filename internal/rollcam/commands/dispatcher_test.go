package commands_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rollcam/rollcam/internal/rollcam/audit"
	"github.com/rollcam/rollcam/internal/rollcam/commands"
	"github.com/rollcam/rollcam/internal/rollcam/listing"
	"github.com/rollcam/rollcam/internal/rollcam/menu"
	"github.com/rollcam/rollcam/internal/rollcam/registry"
)

// mapSource is a listing.Source backed by a map; unknown URLs fail.
type mapSource map[string][]string

func (m mapSource) List(_ context.Context, url string) ([]string, error) {
	if e, ok := m[url]; ok {
		return e, nil
	}
	return nil, errors.New("not found")
}

type fakeLatest struct {
	batch []string
	err   error
	asked int
}

func (f *fakeLatest) Latest(_ context.Context, _ registry.Machine, n int) ([]string, error) {
	f.asked = n
	if f.err != nil {
		return nil, f.err
	}
	if n < len(f.batch) {
		return f.batch[:n], nil
	}
	return f.batch, nil
}

type panicLister struct{}

func (panicLister) Folders(context.Context, string) []string  { panic("listing exploded") }
func (panicLister) Children(context.Context, string) []string { panic("listing exploded") }

type recordingNotifier struct{ events []audit.Event }

func (r *recordingNotifier) Notify(_ context.Context, evt audit.Event) {
	r.events = append(r.events, evt)
}

var taipei = mustLoad("Asia/Taipei")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// fixedNow is 2024-01-01 11:30 in Taipei.
func fixedNow() time.Time { return time.Date(2024, 1, 1, 11, 30, 0, 0, taipei) }

func newDispatcher(t *testing.T, src listing.Source, latest commands.LatestSource, n audit.Notifier) *commands.Dispatcher {
	t.Helper()
	d, err := commands.NewDispatcher(commands.Config{
		Registry: testRegistry(t),
		Lister:   listing.NewDirectory(src, nil),
		Latest:   latest,
		Location: taipei,
		Now:      fixedNow,
		Notifier: n,
	})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}

func dispatch(d *commands.Dispatcher, text string) commands.Reply {
	return d.Dispatch(context.Background(), commands.Inbound{Text: text, Sender: "@op:example.com"})
}

func TestDispatch_FunctionMenu(t *testing.T) {
	d := newDispatcher(t, mapSource{}, &fakeLatest{}, nil)
	r := dispatch(d, "!")
	if r.Kind != commands.ReplyMenu || len(r.Menu.Pages) != 1 {
		t.Fatalf("unexpected reply %+v", r)
	}
	got := r.Menu.Options()
	want := []menu.Option{
		{Label: "最新影像", Payload: "!最新影像"},
		{Label: "最新影像五張", Payload: "!最新影像五張"},
		{Label: "自訂時間區間", Payload: "!自訂時間影像"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if r.Intent != "show_menu" {
		t.Errorf("intent = %q", r.Intent)
	}
}

func TestDispatch_MachineMenu(t *testing.T) {
	d := newDispatcher(t, mapSource{}, &fakeLatest{}, nil)
	r := dispatch(d, "!最新影像五張")
	want := []menu.Option{
		{Label: "L1", Payload: "(L1)最新影像五張"},
		{Label: "L2", Payload: "(L2)最新影像五張"},
	}
	if r.Kind != commands.ReplyMenu || !reflect.DeepEqual(r.Menu.Options(), want) {
		t.Fatalf("unexpected reply %+v", r)
	}
}

func TestDispatch_DateMenuExample(t *testing.T) {
	src := mapSource{
		"http://example/rl1/": {"../", "20240101_10/", "20240101_11/", "20240102_09/"},
	}
	d := newDispatcher(t, src, &fakeLatest{}, nil)

	r := dispatch(d, "(L1)自訂時間影像")
	if r.Kind != commands.ReplyMenu {
		t.Fatalf("expected menu, got %+v", r)
	}
	want := []menu.Option{
		{Label: "20240101", Payload: "!(L1)影像:20240101"},
		{Label: "20240102", Payload: "!(L1)影像:20240102"},
	}
	if !reflect.DeepEqual(r.Menu.Options(), want) {
		t.Fatalf("got %v, want %v", r.Menu.Options(), want)
	}
}

func TestDispatch_PayloadRoundTrip(t *testing.T) {
	src := mapSource{
		"http://example/rl1/":             {"../", "20240101_10/", "20240101_11/"},
		"http://example/rl1/20240101_10/": {"../", "2024-01-01_10_05_00_a.png"},
	}
	d := newDispatcher(t, src, &fakeLatest{}, nil)

	dates := dispatch(d, "(L1)自訂").Menu.Options()
	if got := d.Interpret(dates[0].Payload); !reflect.DeepEqual(got, commands.RequestTimeList{Machine: "(L1)", Date: "20240101"}) {
		t.Fatalf("date payload gave %#v", got)
	}

	buckets := dispatch(d, dates[0].Payload).Menu.Options()
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %v", buckets)
	}
	if got := d.Interpret(buckets[0].Payload); !reflect.DeepEqual(got, commands.RequestImageList{Machine: "(L1)", Bucket: "20240101_10"}) {
		t.Fatalf("bucket payload gave %#v", got)
	}

	images := dispatch(d, buckets[0].Payload).Menu.Options()
	if len(images) != 1 || images[0].Label != "10_05_00" {
		t.Fatalf("unexpected image options %v", images)
	}
	final := dispatch(d, images[0].Payload)
	if final.Kind != commands.ReplyImages || final.Images[0] != "http://example/rl1/20240101_10/2024-01-01_10_05_00_a.png" {
		t.Fatalf("unexpected final reply %+v", final)
	}
}

func TestDispatch_EmptyListingGivesNoResults(t *testing.T) {
	d := newDispatcher(t, mapSource{}, &fakeLatest{}, nil)
	r := dispatch(d, "(L2)自訂")
	if r.Kind != commands.ReplyText || r.Text != "查無影像" {
		t.Fatalf("expected no-results text, got %+v", r)
	}
}

func TestDispatch_LatestFreshExample(t *testing.T) {
	latest := &fakeLatest{batch: []string{"20240101_11/a.png", "20240101_11/b.png"}}
	d := newDispatcher(t, mapSource{}, latest, nil)

	r := dispatch(d, "(L1)最新影像")
	if r.Kind != commands.ReplyImages || len(r.Images) != 1 {
		t.Fatalf("expected exactly one image, got %+v", r)
	}
	if r.Images[0] != "http://example/rl1/20240101_11/a.png" {
		t.Errorf("image url = %q", r.Images[0])
	}
	if latest.asked != 1 {
		t.Errorf("asked for %d images, want 1", latest.asked)
	}
}

func TestDispatch_LatestFive(t *testing.T) {
	latest := &fakeLatest{batch: []string{
		"20240101_10/e.png", "20240101_10/d.png", "20240101_10/c.png",
		"20240101_10/b.png", "20240101_10/a.png",
	}}
	d := newDispatcher(t, mapSource{}, latest, nil)
	r := dispatch(d, "(L2)最新影像五張")
	if r.Kind != commands.ReplyImages || len(r.Images) != 5 {
		t.Fatalf("expected five images, got %+v", r)
	}
	if !strings.HasPrefix(r.Images[0], "http://example/rl2/20240101_10/") {
		t.Errorf("wrong machine base: %q", r.Images[0])
	}
}

func TestDispatch_LatestStale(t *testing.T) {
	n := &recordingNotifier{}
	for _, batch := range [][]string{
		{"20240101_09/a.png"},
		nil,
	} {
		d := newDispatcher(t, mapSource{}, &fakeLatest{batch: batch}, n)
		r := dispatch(d, "(L1)最新影像")
		if r.Kind != commands.ReplyText || r.Text != "一小時內無影像" {
			t.Fatalf("batch %v: expected stale text, got %+v", batch, r)
		}
	}
	if len(n.events) != 2 || n.events[0].Kind != audit.KindStale || n.events[0].Target != "(L1)" {
		t.Fatalf("unexpected audit events %+v", n.events)
	}
}

func TestDispatch_SpecificImage(t *testing.T) {
	d := newDispatcher(t, mapSource{}, &fakeLatest{}, nil)
	r := dispatch(d, "(L2)時間:2024-10-23_10_01_21_63_900_D25.png")
	want := "http://example/rl2/20241023_10/2024-10-23_10_01_21_63_900_D25.png"
	if r.Kind != commands.ReplyImages || r.Images[0] != want {
		t.Fatalf("got %+v, want %s", r, want)
	}
}

func TestDispatch_MalformedFilenameGivesGenericError(t *testing.T) {
	n := &recordingNotifier{}
	d := newDispatcher(t, mapSource{}, &fakeLatest{}, n)
	r := dispatch(d, "(L1)時間:garbage")
	if r.Kind != commands.ReplyText || r.Text != "Unable to process your request" {
		t.Fatalf("expected generic error, got %+v", r)
	}
	if len(n.events) != 1 || n.events[0].Kind != audit.KindError {
		t.Fatalf("expected one error event, got %+v", n.events)
	}
}

type recordingLister struct{ asked []string }

func (r *recordingLister) Folders(_ context.Context, url string) []string {
	r.asked = append(r.asked, url)
	return nil
}

func (r *recordingLister) Children(_ context.Context, url string) []string {
	r.asked = append(r.asked, url)
	return nil
}

func TestDispatch_RejectsPathEscapes(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"bucket parent", "!(L1)搜尋:../rl2/20240101_10"},
		{"bucket slash", "!(L1)搜尋:20240101_10/sub"},
		{"bucket backslash", `!(L1)搜尋:..\rl2`},
		{"bucket empty", "!(L1)搜尋:"},
		{"filename parent", "(L1)時間:../../../rl2/20240101_10/x.png"},
		{"filename slash", "(L1)時間:2024-10-23_10_01/x.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &recordingLister{}
			n := &recordingNotifier{}
			d, err := commands.NewDispatcher(commands.Config{
				Registry: testRegistry(t),
				Lister:   lister,
				Latest:   &fakeLatest{},
				Location: taipei,
				Now:      fixedNow,
				Notifier: n,
			})
			if err != nil {
				t.Fatalf("NewDispatcher: %v", err)
			}

			r := dispatch(d, tt.text)
			if r.Kind != commands.ReplyText || r.Text != "Unable to process your request" {
				t.Fatalf("expected generic error, got %+v", r)
			}
			if !errors.Is(r.Err, commands.ErrUnsafePath) {
				t.Errorf("Err = %v, want ErrUnsafePath", r.Err)
			}
			if len(lister.asked) != 0 {
				t.Errorf("lister asked for %v", lister.asked)
			}
			if len(n.events) != 1 || n.events[0].Kind != audit.KindError {
				t.Errorf("expected one error event, got %+v", n.events)
			}
		})
	}
}

func TestDispatch_LatestErrorGivesGenericError(t *testing.T) {
	d := newDispatcher(t, mapSource{}, &fakeLatest{err: errors.New("archive offline")}, nil)
	r := dispatch(d, "(L1)最新")
	if r.Text != "Unable to process your request" {
		t.Fatalf("expected generic error, got %+v", r)
	}
	if r.Err == nil || !strings.Contains(r.Err.Error(), "archive offline") {
		t.Errorf("expected underlying error on reply, got %v", r.Err)
	}
}

func TestDispatch_PanicIsContained(t *testing.T) {
	n := &recordingNotifier{}
	d, err := commands.NewDispatcher(commands.Config{
		Registry: testRegistry(t),
		Lister:   panicLister{},
		Latest:   &fakeLatest{},
		Location: taipei,
		Now:      fixedNow,
		Notifier: n,
	})
	if err != nil {
		t.Fatal(err)
	}
	r := dispatch(d, "(L1)自訂")
	if r.Kind != commands.ReplyText || r.Text != "Unable to process your request" {
		t.Fatalf("expected generic error after panic, got %+v", r)
	}
	if r.Intent != "request_date_list" {
		t.Errorf("intent = %q", r.Intent)
	}
	if len(n.events) != 1 {
		t.Fatalf("expected one audit event, got %d", len(n.events))
	}
}

func TestDispatch_UnrecognizedIsSilent(t *testing.T) {
	d := newDispatcher(t, mapSource{}, &fakeLatest{}, nil)
	if r := dispatch(d, "good morning"); r.Kind != commands.ReplyNone {
		t.Fatalf("expected no reply, got %+v", r)
	}
}

func TestNewDispatcher_DefaultsLatestFromDirectory(t *testing.T) {
	src := mapSource{
		"http://example/rl1/":             {"../", "20240101_11/"},
		"http://example/rl1/20240101_11/": {"../", "2024-01-01_11_20_00.png"},
	}
	d, err := commands.NewDispatcher(commands.Config{
		Registry: testRegistry(t),
		Lister:   listing.NewDirectory(src, nil),
		Now:      fixedNow,
	})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	r := dispatch(d, "(L1)最新影像")
	if r.Kind != commands.ReplyImages || r.Images[0] != "http://example/rl1/20240101_11/2024-01-01_11_20_00.png" {
		t.Fatalf("unexpected reply %+v", r)
	}
}
