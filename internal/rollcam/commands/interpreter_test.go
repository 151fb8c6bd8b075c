package commands_test

import (
	"reflect"
	"testing"

	"github.com/rollcam/rollcam/internal/rollcam/commands"
	"github.com/rollcam/rollcam/internal/rollcam/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]registry.Machine{
		{Key: "(L1)", ID: "rl1", URL: "http://example/rl1/"},
		{Key: "(L2)", ID: "rl2", URL: "http://example/rl2/"},
	}, registry.DefaultVocabulary())
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	return reg
}

func TestInterpret(t *testing.T) {
	p := commands.NewInterpreter(testRegistry(t))

	tests := []struct {
		text string
		want commands.Intent
	}{
		{"!", commands.ShowMenu{}},
		{"！", commands.ShowMenu{}},
		{"  !  ", commands.ShowMenu{}},
		{"!最新影像", commands.ChoosePipeline{Function: "!最新影像"}},
		{"!最新影像五張", commands.ChoosePipeline{Function: "!最新影像五張"}},
		{"!自訂時間影像", commands.ChoosePipeline{Function: "!自訂時間影像"}},
		{"(L1)自訂時間影像", commands.RequestDateList{Machine: "(L1)", Rest: "自訂時間影像"}},
		{"(L2)自訂", commands.RequestDateList{Machine: "(L2)", Rest: "自訂"}},
		{"!(L1)影像:20240101", commands.RequestTimeList{Machine: "(L1)", Date: "20240101"}},
		{"!(L2)搜尋:20240101_10", commands.RequestImageList{Machine: "(L2)", Bucket: "20240101_10"}},
		{"(L1)最新影像", commands.ShowLatest{Machine: "(L1)", Count: 1}},
		{"(L2)最新影像五張", commands.ShowLatest{Machine: "(L2)", Count: 5}},
		{"(L1)最新", commands.ShowLatest{Machine: "(L1)", Count: 1}},
		{
			"(L1)時間:2024-10-23_10_01_21_63_900_D25.png",
			commands.ShowSpecificImage{Machine: "(L1)", Date: "20241023", Hour: "10", Filename: "2024-10-23_10_01_21_63_900_D25.png"},
		},
		{"(L1)時間:broken.png", commands.ShowSpecificImage{Machine: "(L1)", Filename: "broken.png"}},
		{"hello", commands.Unrecognized{}},
		{"!!", commands.Unrecognized{}},
		{"(L3)最新影像", commands.Unrecognized{}},
		{"", commands.Unrecognized{}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := p.Interpret(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Interpret(%q) = %#v, want %#v", tt.text, got, tt.want)
			}
		})
	}
}

func TestInterpret_NoCrossMachineLeakage(t *testing.T) {
	reg := testRegistry(t)
	p := commands.NewInterpreter(reg)

	for _, m := range reg.Machines() {
		for _, text := range []string{
			m.Key + "自訂時間影像",
			m.ImagePrefix + "20240101",
			m.SearchPrefix + "20240101_10",
			m.Key + "最新影像",
			m.TimePrefix + "2024-01-01_10_00_00.png",
		} {
			if got := commands.MachineOf(p.Interpret(text)); got != m.Key {
				t.Errorf("%q resolved to machine %q, want %q", text, got, m.Key)
			}
		}
	}
}

func TestSplitImageName(t *testing.T) {
	date, hour, ok := commands.SplitImageName("2024-10-23_10_01_21.png")
	if !ok || date != "20241023" || hour != "10" {
		t.Fatalf("got %q %q %v", date, hour, ok)
	}
	if _, _, ok := commands.SplitImageName("nounderscore.png"); ok {
		t.Fatal("expected !ok for name without fields")
	}
}
