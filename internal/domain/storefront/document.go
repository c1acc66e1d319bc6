package storefront

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/faq"
	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
)

const questionBlockType = "question"

// document is a theme template held as raw bytes. Reads go through gjson and
// writes through sjson so untouched content keeps its original bytes.
type document struct {
	// header is the comment banner Shopify prepends to generated templates.
	header []byte
	raw    []byte
}

type questionBlock struct {
	Type     string           `json:"type"`
	Settings questionSettings `json:"settings"`
}

type questionSettings struct {
	Handle  string `json:"question_handle"`
	Heading string `json:"heading"`
	Content string `json:"question_content"`
}

func parseDocument(value string) (*document, error) {
	header, body := splitHeader([]byte(value))
	if !gjson.ValidBytes(body) {
		return nil, apperrors.Wrap(apperrors.CodeDecode, "theme template is not valid json", nil)
	}
	if !gjson.ParseBytes(body).IsObject() {
		return nil, apperrors.Wrap(apperrors.CodeDecode, "theme template is not a json object", nil)
	}
	return &document{header: header, raw: body}, nil
}

func splitHeader(value []byte) ([]byte, []byte) {
	trimmed := bytes.TrimLeft(value, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("/*")) {
		return nil, value
	}
	end := bytes.Index(trimmed, []byte("*/"))
	if end < 0 {
		return nil, value
	}
	cut := len(value) - len(trimmed) + end + 2
	return value[:cut], value[cut:]
}

func (d *document) String() string {
	if len(d.header) == 0 {
		return string(d.raw)
	}
	return string(d.header) + string(d.raw)
}

func (d *document) sections() []faq.Section {
	var out []faq.Section
	gjson.GetBytes(d.raw, "sections").ForEach(func(key, value gjson.Result) bool {
		section := faq.Section{
			ID:       key.String(),
			Type:     value.Get("type").String(),
			Category: value.Get(path("settings", "question_category")).String(),
			Icon:     value.Get(path("settings", "icon-faq")).String(),
		}
		value.Get("blocks").ForEach(func(_, block gjson.Result) bool {
			if block.Get("type").String() == questionBlockType {
				section.QuestionCount++
			}
			return true
		})
		out = append(out, section)
		return true
	})
	return out
}

func (d *document) hasSection(sectionID string) bool {
	return gjson.GetBytes(d.raw, path("sections", sectionID)).IsObject()
}

// questions lists question blocks in block_order first, then any block the
// order array does not mention, in document order.
func (d *document) questions(sectionID string) []faq.Entry {
	section := gjson.GetBytes(d.raw, path("sections", sectionID))
	blocks := section.Get("blocks")
	seen := make(map[string]struct{})
	var out []faq.Entry
	collect := func(blockID string, block gjson.Result) {
		if _, ok := seen[blockID]; ok {
			return
		}
		seen[blockID] = struct{}{}
		if block.Get("type").String() != questionBlockType {
			return
		}
		out = append(out, faq.Entry{
			BlockID:   blockID,
			Handle:    block.Get(path("settings", "question_handle")).String(),
			Heading:   block.Get(path("settings", "heading")).String(),
			Content:   block.Get(path("settings", "question_content")).String(),
			SectionID: sectionID,
		})
	}
	for _, id := range section.Get("block_order").Array() {
		if block := blocks.Get(escape(id.String())); block.Exists() {
			collect(id.String(), block)
		}
	}
	blocks.ForEach(func(key, block gjson.Result) bool {
		collect(key.String(), block)
		return true
	})
	return out
}

func (d *document) findHandle(sectionID, handle string) (faq.Entry, bool) {
	for _, entry := range d.questions(sectionID) {
		if entry.Handle == handle {
			return entry, true
		}
	}
	return faq.Entry{}, false
}

func (d *document) addQuestion(sectionID, blockID string, settings questionSettings) error {
	block, err := marshalRaw(questionBlock{Type: questionBlockType, Settings: settings})
	if err != nil {
		return err
	}
	if err := d.setRaw(path("sections", sectionID, "blocks", blockID), block); err != nil {
		return err
	}
	order := path("sections", sectionID, "block_order")
	if !gjson.GetBytes(d.raw, order).IsArray() {
		if err := d.setRaw(order, []byte("[]")); err != nil {
			return err
		}
	}
	return d.setString(order+".-1", blockID)
}

func (d *document) removeBlock(sectionID, blockID string) error {
	order := gjson.GetBytes(d.raw, path("sections", sectionID, "block_order")).Array()
	// delete from the end so earlier indexes stay valid
	for i := len(order) - 1; i >= 0; i-- {
		if order[i].String() != blockID {
			continue
		}
		if err := d.delete(path("sections", sectionID, "block_order") + "." + strconv.Itoa(i)); err != nil {
			return err
		}
	}
	return d.delete(path("sections", sectionID, "blocks", blockID))
}

func (d *document) setBlockSetting(sectionID, blockID, key, value string) error {
	return d.setString(path("sections", sectionID, "blocks", blockID, "settings", key), value)
}

func (d *document) setSectionSetting(sectionID, key, value string) error {
	return d.setString(path("sections", sectionID, "settings", key), value)
}

func (d *document) setString(p, value string) error {
	raw, err := marshalRaw(value)
	if err != nil {
		return err
	}
	return d.setRaw(p, raw)
}

func (d *document) setRaw(p string, raw []byte) error {
	updated, err := sjson.SetRawBytes(d.raw, p, raw)
	if err != nil {
		return fmt.Errorf("set %s: %w", p, err)
	}
	d.raw = updated
	return nil
}

func (d *document) delete(p string) error {
	updated, err := sjson.DeleteBytes(d.raw, p)
	if err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	d.raw = updated
	return nil
}

// marshalRaw encodes v without escaping HTML so answer markup stays readable.
func marshalRaw(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode theme value: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func path(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = escape(s)
	}
	return strings.Join(escaped, ".")
}

func escape(segment string) string {
	var b strings.Builder
	b.Grow(len(segment))
	for _, r := range segment {
		switch r {
		case '\\', '.', '*', '?', '|', '#', '@', '!', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
