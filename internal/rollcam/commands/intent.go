// Package commands turns chat text into replies.
//
// Interpret classifies a message into an Intent using prefix matching
// against the machine registry; Dispatcher executes the intent, fetching
// listings and building menus where needed. Neither keeps state between
// messages: every menu button carries the complete next command as its
// payload.
package commands

// Intent is the classified meaning of one message. The set of intents is
// closed; switch on the concrete type.
type Intent interface {
	// Name is a stable identifier used in logs, metrics and the audit log.
	Name() string
	intent()
}

// ShowMenu asks for the top-level function menu.
type ShowMenu struct{}

// ChoosePipeline selects a function; the reply asks which machine.
type ChoosePipeline struct {
	Function string
}

// RequestDateList asks for the dates available on a machine. Rest is the
// text after the machine key, carried through unchanged.
type RequestDateList struct {
	Machine string
	Rest    string
}

// RequestTimeList asks for the hour buckets of one date.
type RequestTimeList struct {
	Machine string
	Date    string
}

// RequestImageList asks for the per-minute images of one hour bucket.
type RequestImageList struct {
	Machine string
	Bucket  string
}

// ShowLatest asks for the newest Count images.
type ShowLatest struct {
	Machine string
	Count   int
}

// ShowSpecificImage asks for one image. Date and Hour are derived from the
// filename and are empty when it is malformed.
type ShowSpecificImage struct {
	Machine  string
	Date     string
	Hour     string
	Filename string
}

// Unrecognized is any message that matched no rule.
type Unrecognized struct{}

func (ShowMenu) Name() string          { return "show_menu" }
func (ChoosePipeline) Name() string    { return "choose_pipeline" }
func (RequestDateList) Name() string   { return "request_date_list" }
func (RequestTimeList) Name() string   { return "request_time_list" }
func (RequestImageList) Name() string  { return "request_image_list" }
func (ShowLatest) Name() string        { return "show_latest" }
func (ShowSpecificImage) Name() string { return "show_specific_image" }
func (Unrecognized) Name() string      { return "unrecognized" }

func (ShowMenu) intent()          {}
func (ChoosePipeline) intent()    {}
func (RequestDateList) intent()   {}
func (RequestTimeList) intent()   {}
func (RequestImageList) intent()  {}
func (ShowLatest) intent()        {}
func (ShowSpecificImage) intent() {}
func (Unrecognized) intent()      {}

// MachineOf returns the machine key an intent refers to, or "".
func MachineOf(i Intent) string {
	switch v := i.(type) {
	case RequestDateList:
		return v.Machine
	case RequestTimeList:
		return v.Machine
	case RequestImageList:
		return v.Machine
	case ShowLatest:
		return v.Machine
	case ShowSpecificImage:
		return v.Machine
	default:
		return ""
	}
}
