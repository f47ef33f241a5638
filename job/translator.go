package job

import (
	"encoding/json"
	"log"
	"os"

	"github.com/nixxel-company-limited/escpos-bt-server/escpos"
)

// Command types understood by the translator
const (
	TypeText    = "text"
	TypeBarcode = "barcode"
	TypeQR      = "qr"
	TypeCut     = "cut"
)

// Command is a single fully-resolved job entry. Every field carries its
// default when the source object omitted it.
type Command struct {
	Type    string
	Text    string
	Align   escpos.Alignment
	Bold    bool
	Size    escpos.FontSize
	Newline bool
}

// Literal returns the command used when a job is not JSON at all
func Literal(text string) Command {
	return Command{Type: TypeText, Text: text, Newline: true}
}

// Translator turns job descriptions into encoder calls
type Translator struct {
	logger *log.Logger
}

// NewTranslator creates a translator logging to stdout
func NewTranslator() *Translator {
	return &Translator{
		logger: log.New(os.Stdout, "[JOB] ", log.LstdFlags|log.Lmsgprefix),
	}
}

// NewTranslatorWithLogger creates a translator with a custom logger
func NewTranslatorWithLogger(logger *log.Logger) *Translator {
	return &Translator{logger: logger}
}

// Parse decodes raw into commands. It never fails: input that is neither a
// JSON array of objects nor a JSON object becomes one literal text command.
func (t *Translator) Parse(raw []byte) []Command {
	var list []map[string]any
	err := json.Unmarshal(raw, &list)
	if err == nil && list != nil {
		return resolveAll(list)
	}
	t.logger.Printf("Job is not a JSON array (%v), trying single object", errOrNull(err))

	var single map[string]any
	err = json.Unmarshal(raw, &single)
	if err == nil && single != nil {
		return []Command{resolve(single)}
	}
	t.logger.Printf("Job is not a JSON object (%v), printing as text", errOrNull(err))

	return []Command{Literal(string(raw))}
}

// Translate parses raw and emits the commands to enc
func (t *Translator) Translate(raw []byte, enc *escpos.Encoder) []Command {
	cmds := t.Parse(raw)
	t.logger.Printf("Parsed %d commands", len(cmds))
	t.Emit(cmds, enc)
	return cmds
}

// Emit writes cmds to enc. Style is re-sent for every command.
func (t *Translator) Emit(cmds []Command, enc *escpos.Encoder) {
	for _, cmd := range cmds {
		enc.Align(cmd.Align).Bold(cmd.Bold).FontSize(cmd.Size)

		switch cmd.Type {
		case TypeText:
			enc.Text(cmd.Text)
		case TypeBarcode:
			enc.Barcode(cmd.Text)
		case TypeQR:
			enc.QRCode(cmd.Text)
		case TypeCut:
			enc.Cut()
		default:
			t.logger.Printf("Warning: unknown command type %q, treating as text", cmd.Type)
			enc.Text(cmd.Type)
		}

		if cmd.Newline {
			enc.LineBreak()
		}
	}
}

func resolveAll(list []map[string]any) []Command {
	cmds := make([]Command, 0, len(list))
	for _, m := range list {
		cmds = append(cmds, resolve(m))
	}
	return cmds
}

func resolve(m map[string]any) Command {
	cmd := Command{
		Type:    stringField(m, "type", TypeText),
		Text:    stringField(m, "text", ""),
		Bold:    boolField(m, "bold"),
		Newline: boolField(m, "newline"),
	}

	switch stringField(m, "align", "") {
	case "center":
		cmd.Align = escpos.AlignCenter
	case "right":
		cmd.Align = escpos.AlignRight
	default:
		cmd.Align = escpos.AlignLeft
	}

	switch stringField(m, "size", "") {
	case "double":
		cmd.Size = escpos.SizeDouble
	case "double_height":
		cmd.Size = escpos.SizeDoubleHeight
	case "double_width":
		cmd.Size = escpos.SizeDoubleWidth
	default:
		cmd.Size = escpos.SizeNormal
	}

	return cmd
}

func stringField(m map[string]any, key, def string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return def
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func errOrNull(err error) any {
	if err == nil {
		return "null"
	}
	return err
}
