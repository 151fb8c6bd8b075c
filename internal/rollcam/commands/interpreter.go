package commands

import (
	"strings"

	"github.com/rollcam/rollcam/internal/rollcam/registry"
)

// Interpreter classifies messages against a registry.
type Interpreter struct {
	reg   *registry.Registry
	vocab registry.Vocabulary
}

func NewInterpreter(reg *registry.Registry) *Interpreter {
	return &Interpreter{reg: reg, vocab: reg.Vocabulary()}
}

// Interpret applies the rules in order; the first match wins and, within a
// rule, machines are tried in registry order.
func (p *Interpreter) Interpret(text string) Intent {
	text = strings.TrimSpace(text)
	v := p.vocab
	machines := p.reg.Machines()

	if v.IsMenuKeyword(text) {
		return ShowMenu{}
	}
	if f, ok := v.FunctionFor(text); ok {
		return ChoosePipeline{Function: f.Payload}
	}
	for _, m := range machines {
		if strings.HasPrefix(text, m.Key+v.CustomWord) {
			return RequestDateList{Machine: m.Key, Rest: strings.TrimPrefix(text, m.Key)}
		}
	}
	for _, m := range machines {
		if strings.HasPrefix(text, m.ImagePrefix) {
			return RequestTimeList{Machine: m.Key, Date: p.secondField(text, m.ImagePrefix)}
		}
	}
	for _, m := range machines {
		if strings.HasPrefix(text, m.SearchPrefix) {
			return RequestImageList{Machine: m.Key, Bucket: p.lastField(text, m.SearchPrefix)}
		}
	}
	for _, m := range machines {
		if strings.HasPrefix(text, m.Key+v.LatestWord) {
			count := 1
			if strings.Contains(strings.TrimPrefix(text, m.Key), v.FiveWord) {
				count = 5
			}
			return ShowLatest{Machine: m.Key, Count: count}
		}
	}
	for _, m := range machines {
		if strings.HasPrefix(text, m.TimePrefix) {
			name := p.lastField(text, m.TimePrefix)
			date, hour, _ := SplitImageName(name)
			return ShowSpecificImage{Machine: m.Key, Date: date, Hour: hour, Filename: name}
		}
	}
	return Unrecognized{}
}

// secondField returns the field after the first delimiter, or the text after
// prefix when the delimiter does not occur.
func (p *Interpreter) secondField(text, prefix string) string {
	if fields := strings.Split(text, p.vocab.Delimiter); len(fields) > 1 {
		return fields[1]
	}
	return strings.TrimPrefix(text, prefix)
}

// lastField returns the text after the last delimiter, or the text after
// prefix when the delimiter does not occur.
func (p *Interpreter) lastField(text, prefix string) string {
	if i := strings.LastIndex(text, p.vocab.Delimiter); i >= 0 {
		return text[i+len(p.vocab.Delimiter):]
	}
	return strings.TrimPrefix(text, prefix)
}

// SplitImageName derives the hour-folder parts from an image filename such
// as "2024-10-23_10_01_21_63_900_D25.png": date "20241023", hour "10".
func SplitImageName(name string) (date, hour string, ok bool) {
	fields := strings.Split(name, "_")
	if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
		return "", "", false
	}
	return strings.ReplaceAll(fields[0], "-", ""), fields[1], true
}
