package manifest

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// scanState tracks where the line scan currently is.
type scanState int

const (
	stateSeekingTitle scanState = iota
	stateInSection
	stateInAction
)

const (
	sectionActions = "actions"
	sectionAuth    = "auth"
)

// paramPattern matches a structured parameter line of the shape
//
//	name (type, required|optional): description
//
// with an optional leading list bullet. Anything else inside a params block
// is dropped.
var paramPattern = regexp.MustCompile(`^(?:[-*]\s+)?([A-Za-z_][A-Za-z0-9_.-]*)\s*\(\s*([^,()]+?)\s*,\s*(required|optional)\s*\)\s*:\s*(.*)$`)

// DiagnosticFunc receives lines the parser skipped, for callers that want
// stricter validation than the default lenient scan. lineNo is 1-based.
type DiagnosticFunc func(lineNo int, line string, reason string)

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithDiagnostics installs a callback for skipped manifest lines. Parsing
// behavior is unchanged; the callback is purely informational.
func WithDiagnostics(fn DiagnosticFunc) ParserOption {
	return func(p *Parser) {
		p.diag = fn
	}
}

// Parser turns raw agent.md text into a Contract. It never fails: malformed
// fragments are dropped and the best-effort contract is returned, so garbage
// input yields an empty contract rather than an error.
type Parser struct {
	logger *logrus.Logger
	diag   DiagnosticFunc
}

// NewParser creates a manifest parser.
func NewParser(logger *logrus.Logger, opts ...ParserOption) *Parser {
	if logger == nil {
		logger = logrus.New()
	}

	p := &Parser{logger: logger}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Parse scans the manifest text left to right, line by line. The scan keeps
// three pieces of state: the current top-level section, the in-progress
// action (if any), and whether the app-name/description singletons have been
// captured yet.
func (p *Parser) Parse(text string) *Contract {
	contract := &Contract{
		Auth:    make(map[string]string),
		Actions: make([]Action, 0),
	}

	state := stateSeekingTitle
	section := ""
	sectionSeen := false
	titleSet := false
	descriptionSet := false

	var current *Action

	flush := func() {
		if current != nil {
			contract.Actions = append(contract.Actions, *current)
			current = nil
		}
	}

	lines := strings.Split(text, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "### "):
			if section == sectionActions {
				flush()
				current = &Action{
					Name:   strings.TrimSpace(strings.TrimPrefix(line, "### ")),
					Params: make([]Param, 0),
				}
				state = stateInAction
			} else {
				p.skip(i+1, line, "level-3 heading outside actions section")
			}

		case strings.HasPrefix(line, "## "):
			flush()
			section = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "## ")))
			sectionSeen = true
			state = stateInSection

		case strings.HasPrefix(line, "# "):
			if !titleSet {
				contract.AppName = strings.TrimSpace(strings.TrimPrefix(line, "# "))
				titleSet = true
			} else {
				p.skip(i+1, line, "duplicate level-1 heading")
			}

		case strings.HasPrefix(line, ">"):
			if !descriptionSet && !sectionSeen {
				contract.Description = strings.TrimSpace(strings.TrimPrefix(line, ">"))
				descriptionSet = true
			} else {
				p.skip(i+1, line, "extra blockquote")
			}

		case state == stateInAction && current != nil:
			p.scanActionLine(current, i+1, line)

		case section == sectionAuth:
			p.scanAuthLine(contract, i+1, line)

		default:
			p.skip(i+1, line, "unrecognized line")
		}
	}

	flush()

	p.logger.Debugf("Parsed manifest: app=%q actions=%d", contract.AppName, len(contract.Actions))
	return contract
}

// scanActionLine interprets one body line of an in-progress action. Property
// lines overwrite on repetition; param lines append; everything else is
// dropped without failing the parse.
func (p *Parser) scanActionLine(action *Action, lineNo int, line string) {
	body := strings.TrimSpace(strings.TrimLeft(line, "-* \t"))
	lower := strings.ToLower(body)

	switch {
	case strings.HasPrefix(lower, "description:"):
		action.Description = strings.TrimSpace(body[len("description:"):])
	case strings.HasPrefix(lower, "returns:"):
		action.Returns = strings.TrimSpace(body[len("returns:"):])
	case strings.HasPrefix(lower, "example:"):
		action.Example = strings.TrimSpace(body[len("example:"):])
	case lower == "no params" || lower == "no parameters" || lower == "params: none":
		action.Params = make([]Param, 0)
	case lower == "params:" || lower == "parameters:":
		// Block header only; the param lines that follow carry the data.
	default:
		if m := paramPattern.FindStringSubmatch(line); m != nil {
			action.Params = append(action.Params, Param{
				Name:        m[1],
				Type:        strings.ToLower(strings.TrimSpace(m[2])),
				Required:    m[3] == "required",
				Description: strings.TrimSpace(m[4]),
			})
		} else {
			p.skip(lineNo, line, "malformed action line")
		}
	}
}

// scanAuthLine populates the auth map from a body line of the auth section.
func (p *Parser) scanAuthLine(contract *Contract, lineNo int, line string) {
	body := strings.TrimSpace(strings.TrimLeft(line, "-* \t"))
	lower := strings.ToLower(body)

	switch {
	case strings.HasPrefix(lower, "type:"):
		contract.Auth["type"] = strings.TrimSpace(body[len("type:"):])
	case strings.HasPrefix(lower, "note:"):
		contract.Auth["note"] = strings.TrimSpace(body[len("note:"):])
	default:
		p.skip(lineNo, line, "unrecognized auth line")
	}
}

func (p *Parser) skip(lineNo int, line, reason string) {
	if p.diag != nil {
		p.diag(lineNo, line, reason)
	}
	p.logger.Tracef("Skipping manifest line %d (%s): %s", lineNo, reason, line)
}
