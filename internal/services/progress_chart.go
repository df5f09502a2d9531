package services

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/yungbote/markbook-backend/internal/markbook"
	"github.com/yungbote/markbook-backend/internal/platform/logger"
)

const (
	chartWidth  = 960
	chartHeight = 480
	chartMargin = 56.0
)

// ChartService draws a student's weekly progress as a line chart PNG, one
// line per visible metric.
type ChartService interface {
	RenderStudent(student markbook.Student, weeks []string, visible markbook.VisibleMetrics) ([]byte, error)
}

type chartService struct {
	log      *logger.Logger
	settings markbook.Settings
	fontFace font.Face
}

// NewChartService loads fontPath when set; otherwise the gg built-in face is used.
func NewChartService(log *logger.Logger, settings markbook.Settings, fontPath string) (ChartService, error) {
	serviceLog := log.With("service", "ChartService")
	cs := &chartService{log: serviceLog, settings: settings}
	if strings.TrimSpace(fontPath) != "" {
		serviceLog.Info("Loading chart font", "font", fontPath)
		face, err := loadFontFace(fontPath, 14)
		if err != nil {
			return nil, fmt.Errorf("could not load chart font: %w", err)
		}
		cs.fontFace = face
	}
	return cs, nil
}

func (cs *chartService) RenderStudent(student markbook.Student, weeks []string, visible markbook.VisibleMetrics) ([]byte, error) {
	points := markbook.ChartSeries(student, weeks)
	keys := visible.Visible()

	dc := gg.NewContext(chartWidth, chartHeight)
	if cs.fontFace != nil {
		dc.SetFontFace(cs.fontFace)
	}
	dc.SetColor(color.White)
	dc.Clear()

	maxY := 1
	for _, p := range points {
		for _, k := range keys {
			if v := p.Value(k); v > maxY {
				maxY = v
			}
		}
	}

	left, top := chartMargin, chartMargin
	right, bottom := float64(chartWidth)-chartMargin, float64(chartHeight)-chartMargin
	plotW, plotH := right-left, bottom-top

	dc.SetColor(color.NRGBA{R: 0x11, G: 0x18, B: 0x27, A: 0xff})
	dc.DrawStringAnchored(student.Name, float64(chartWidth)/2, top/2, 0.5, 0.5)

	// grid
	dc.SetLineWidth(1)
	for i := 0; i <= 4; i++ {
		y := bottom - plotH*float64(i)/4
		dc.SetColor(color.NRGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 0xff})
		dc.DrawLine(left, y, right, y)
		dc.Stroke()
		dc.SetColor(color.NRGBA{R: 0x6b, G: 0x72, B: 0x80, A: 0xff})
		dc.DrawStringAnchored(strconv.Itoa(maxY*i/4), left-8, y, 1, 0.5)
	}

	xAt := func(i int) float64 {
		if len(points) <= 1 {
			return left + plotW/2
		}
		return left + plotW*float64(i)/float64(len(points)-1)
	}
	yAt := func(v int) float64 { return bottom - plotH*float64(v)/float64(maxY) }

	for i, p := range points {
		dc.DrawStringAnchored(p.Week, xAt(i), bottom+16, 0.5, 0.5)
	}

	for n, k := range keys {
		info := cs.settings.Metric(k)
		c, err := parseHexColor(info.Color)
		if err != nil {
			cs.log.Warn("bad metric color (using gray)", "metric", k, "color", info.Color)
			c = color.NRGBA{R: 0x6b, G: 0x72, B: 0x80, A: 0xff}
		}
		dc.SetColor(c)
		dc.SetLineWidth(2.5)
		for i, p := range points {
			x, y := xAt(i), yAt(p.Value(k))
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.Stroke()
		for i, p := range points {
			dc.DrawCircle(xAt(i), yAt(p.Value(k)), 3.5)
			dc.Fill()
		}

		// legend
		lx := left + float64(n)*180
		dc.DrawRectangle(lx, float64(chartHeight)-18, 12, 12)
		dc.Fill()
		dc.SetColor(color.NRGBA{R: 0x37, G: 0x41, B: 0x51, A: 0xff})
		dc.DrawStringAnchored(info.Label, lx+18, float64(chartHeight)-12, 0, 0.5)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func parseHexColor(hex string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", hex)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

func loadFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
