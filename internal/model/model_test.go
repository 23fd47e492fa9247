package model

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow_JSONHasEveryField(t *testing.T) {
	r := Row{ID: 1700000000000, RowNumber: 1, InvID: "A1", D: Float(12)}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, name := range append([]string{"id", "row_number", "inv_id", "especie"}, Measurements...) {
		assert.Contains(t, fields, name)
	}
	assert.Nil(t, fields["especie"])
	assert.Nil(t, fields["h"])
	assert.Equal(t, 12.0, fields["d"])
}

func TestRow_FieldsMatchJSONOrder(t *testing.T) {
	r := Row{ID: 5, RowNumber: 2, InvID: "A1", Especie: Text("Pinus"), DBH: Float(31.5)}
	var names []string
	for _, f := range r.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"id", "row_number", "inv_id", "especie", "n", "d", "di", "dd", "h", "dmay", "dmen", "rmay", "rmen", "dbh"}, names)

	last := r.Fields()[len(names)-1]
	assert.Equal(t, Field{Name: "dbh", Value: "31.5"}, last)
	assert.True(t, r.Fields()[4].Null, "n is blank")
}

func TestRow_SetParsesFields(t *testing.T) {
	var r Row
	for _, f := range (Row{ID: 9, RowNumber: 3, InvID: "B2", Especie: Text("Quercus"), H: Float(-0.25)}).Fields() {
		value := f.Value
		if f.Null {
			value = ""
		}
		require.NoError(t, r.Set(f.Name, value))
	}
	want := Row{ID: 9, RowNumber: 3, InvID: "B2", Especie: Text("Quercus"), H: Float(-0.25)}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}

	assert.Error(t, r.Set("bogus", "1"))
	assert.Error(t, r.Set("d", "twelve"))
	assert.Error(t, r.Set("row_number", ""))
}

func TestInventory_SetParsesFields(t *testing.T) {
	var inv Inventory
	require.NoError(t, inv.Set("inv_id", "A1"))
	require.NoError(t, inv.Set("start_point", "10"))
	require.NoError(t, inv.Set("end_point", ""))
	require.NoError(t, inv.Set("comments", "north slope, wet"))
	assert.Equal(t, Inventory{InvID: "A1", StartPoint: Float(10), Comments: "north slope, wet"}, inv)
	assert.Error(t, inv.Set("unknown", "x"))
}

func TestCaptureDate(t *testing.T) {
	id := time.Date(2024, 3, 9, 14, 5, 6, 789_000_000, time.UTC).UnixMilli()
	assert.Equal(t, "2024-03-09T14:05:06.789Z", CaptureDate(id))
}

func TestNormalizeInventoryID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a1", "A1"},
		{"  parcela-3 ", "PARCELA-3"},
		{"a\u0301rbol", "ÁRBOL"}, // combining acute composes before upper-casing
		{"árbol", "ÁRBOL"},
		{"B2", "B2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeInventoryID(tt.in), tt.in)
	}
}

func TestValidate_AcceptsCompleteRecords(t *testing.T) {
	require.NoError(t, Validate(Inventory{InvID: "A1", Date: "2024-05-01"}))
	require.NoError(t, Validate(Inventory{InvID: "A1"}))
	require.NoError(t, Validate(Row{ID: 1, RowNumber: 1, InvID: "A1", D: Float(12)}))
	require.NoError(t, Validate(&Image{
		ID: 1, Src: "data:image/png;base64,AAAA", Size: 3,
		CaptureDate: CaptureDate(1), RowID: 1, InvID: "A1",
	}))
}

func TestValidate_NullFields(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
	}{
		{"inventory without points", Inventory{InvID: "A1"}},
		{"inventory pointer", &Inventory{InvID: "A1", Date: "2024-01-01", EndPoint: Float(3)}},
		{"row without species or measurements", Row{ID: 1, RowNumber: 1, InvID: "A1"}},
		{"row with one measurement", Row{ID: 1, RowNumber: 1, InvID: "A1", D: Float(12)}},
		{"row with fractional measurement", &Row{ID: 2, RowNumber: 2, InvID: "A1", Especie: Text("Pinus"), H: Float(8.5)}},
		{"image without extension", Image{ID: 1, Src: "data:,", CaptureDate: CaptureDate(1), RowID: 1, InvID: "A1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, Validate(tt.rec))
		})
	}
}

func TestValidate_RejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name   string
		rec    Record
		record string
		path   string
	}{
		{"empty inv id", Inventory{}, "Inventory", "inv_id"},
		{"bad date", Inventory{InvID: "A1", Date: "May 1"}, "Inventory", "date"},
		{"row number zero", Row{ID: 1, RowNumber: 0, InvID: "A1"}, "Row", "row_number"},
		{"row without id", Row{RowNumber: 1, InvID: "A1"}, "Row", "id"},
		{"image src not data url", Image{ID: 1, Src: "http://x", CaptureDate: "x", RowID: 1, InvID: "A1"}, "Image", "src"},
		{"negative size", Image{ID: 1, Src: "data:,", Size: -1, CaptureDate: "x", RowID: 1, InvID: "A1"}, "Image", "size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rec)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.record, ve.Record)
			assert.Contains(t, ve.Path, tt.path)
		})
	}
}

func TestValidate_ConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, Validate(Row{ID: int64(n + 1), RowNumber: n + 1, InvID: "A1"}))
		}(i)
	}
	wg.Wait()
}

func TestClock_StrictlyIncreasing(t *testing.T) {
	fixed := time.UnixMilli(1000)
	c := &Clock{now: func() time.Time { return fixed }}
	assert.Equal(t, int64(1000), c.Next())
	assert.Equal(t, int64(1001), c.Next())
	assert.Equal(t, int64(1002), c.Next())

	fixed = time.UnixMilli(5000)
	assert.Equal(t, int64(5000), c.Next())

	fixed = time.UnixMilli(10)
	assert.Equal(t, int64(5001), c.Next(), "wall clock stepping back keeps ids increasing")
}

func TestClock_NewClockAt(t *testing.T) {
	c := NewClockAt(time.Now().Add(time.Hour).UnixMilli())
	start := c.Current()
	assert.Equal(t, start+1, c.Next())
}

func TestClock_ConcurrentNextIsUnique(t *testing.T) {
	c := NewClock()
	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := c.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1000)
}

func TestCheckExtension(t *testing.T) {
	for _, ext := range []string{"jpg", "JPEG", "png"} {
		assert.NoError(t, CheckExtension(ext), ext)
	}
	for _, ext := range []string{"gif", "", "tiff"} {
		assert.ErrorIs(t, CheckExtension(ext), ErrUnsupportedImage, ext)
	}
	assert.Equal(t, "png", ExtensionOf("/tmp/IMG_01.PNG"))
	assert.Equal(t, "", ExtensionOf("noext"))
}

func TestDataURL_RoundTrip(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0, 1, 2}
	src := DataURL("image/png", payload)
	assert.True(t, strings.HasPrefix(src, "data:image/png;base64,"))

	mime, data, err := ParseDataURL(src)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, payload, data)
}

func TestParseDataURL_Errors(t *testing.T) {
	_, _, err := ParseDataURL("image/png;base64,AAAA")
	assert.ErrorIs(t, err, ErrMalformedDataURL)

	_, _, err = ParseDataURL("data:image/png;base64")
	assert.ErrorIs(t, err, ErrMalformedDataURL)

	_, _, err = ParseDataURL("data:image/png;base64,***")
	assert.ErrorIs(t, err, ErrMalformedDataURL)

	mime, data, err := ParseDataURL("data:text/plain,hello%20world")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mime)
	assert.Equal(t, "hello world", string(data))
}

func TestEstimateSize(t *testing.T) {
	// 12 payload chars without padding estimate 9 bytes.
	assert.Equal(t, int64(9), EstimateSize("data:image/png;base64,QUJDREVGR0hJ"))
	// Padding is ignored: "QUJDRA==" has 6 significant chars.
	assert.Equal(t, int64(5), EstimateSize("data:image/png;base64,QUJDRA=="))
	assert.Equal(t, int64(0), EstimateSize("garbage"))
}

func TestCompress_HalvesDimensions(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, ext, err := Compress(buf.Bytes(), "png")
	require.NoError(t, err)
	assert.Equal(t, "png", ext)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 4, cfg.Width)
	assert.Equal(t, 3, cfg.Height)

	out, ext, err = Compress(buf.Bytes(), "jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpeg", ext)
	_, format, err = image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	_, _, err = Compress([]byte("not an image"), "png")
	assert.Error(t, err)
}
