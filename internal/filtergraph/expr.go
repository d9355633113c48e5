package filtergraph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/makeasinger/autoedit/internal/model"
)

// ErrUnknownPreset is returned for a color preset with no grade defined.
var ErrUnknownPreset = errors.New("unknown color preset")

const (
	captionFontSize = 48
	loudnormExpr    = "loudnorm=I=-16:TP=-1.5:LRA=11"
	denoiseExpr     = "afftdn=nf=-25"
	resampleExpr    = "aresample=async=1:first_pts=0"
)

// colorGrades approximate each look with a channel mix and an eq pass.
var colorGrades = map[string]string{
	model.ColorPresetCinematic: "colorchannelmixer=rr=0.95:gg=0.9:bb=0.85,eq=contrast=1.08:saturation=0.95",
	model.ColorPresetBleach:    "colorchannelmixer=rr=0.9:gg=0.88:bb=0.95,eq=contrast=1.12:saturation=0.7",
	model.ColorPresetLog709:    "colorchannelmixer=rr=1.05:gg=1.02:bb=1.0,eq=contrast=1.05:brightness=0.02",
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// between builds a sum of between() terms that is non-zero inside any window.
func between(variable string, windows []model.Interval) string {
	terms := make([]string, len(windows))
	for i, w := range windows {
		terms[i] = fmt.Sprintf("between(%s,%s,%s)", variable, num(w.Start), num(w.End))
	}
	return strings.Join(terms, "+")
}

func stabilizeExpr() string {
	return "deshake"
}

// aspectCropExpr center-crops to the aspect ratio and scales to the target size.
func aspectCropExpr(aspect string, width, height int) (string, error) {
	aw, ah, err := parseAspect(aspect)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("crop=w='min(iw,ih*%d/%d)':h='min(ih,iw*%d/%d)',scale=%d:%d,setsar=1",
		aw, ah, ah, aw, width, height), nil
}

func parseAspect(aspect string) (int, int, error) {
	w, h, ok := strings.Cut(aspect, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid aspect ratio %q", aspect)
	}
	aw, err := strconv.Atoi(w)
	if err != nil || aw <= 0 {
		return 0, 0, fmt.Errorf("invalid aspect ratio %q", aspect)
	}
	ah, err := strconv.Atoi(h)
	if err != nil || ah <= 0 {
		return 0, 0, fmt.Errorf("invalid aspect ratio %q", aspect)
	}
	return aw, ah, nil
}

// colorGradeExprs returns the preset grade followed by the manual adjustment.
func colorGradeExprs(preset string, adjust *model.ColorAdjust) ([]string, error) {
	var out []string
	if preset != "" {
		grade, ok := colorGrades[preset]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPreset, preset)
		}
		out = append(out, grade)
	}
	if adjust != nil {
		contrast, saturation := adjust.Contrast, adjust.Saturation
		// zero means untouched
		if contrast == 0 {
			contrast = 1
		}
		if saturation == 0 {
			saturation = 1
		}
		out = append(out, fmt.Sprintf("eq=brightness=%s:contrast=%s:saturation=%s",
			num(adjust.Brightness), num(contrast), num(saturation)))
	}
	return out, nil
}

// zoomExpr punches in toward the frame center inside the windows. d=1 keeps
// one output frame per input frame.
func zoomExpr(windows []model.Interval, factor float64, width, height int, fps float64) string {
	return fmt.Sprintf("zoompan=z='if(%s,%s,1)':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=1:s=%dx%d:fps=%s",
		between("in_time", windows), num(factor), width, height, num(fps))
}

func keptWindows(kept []model.KeptInterval) []model.Interval {
	out := make([]model.Interval, len(kept))
	for i, k := range kept {
		out[i] = model.Interval{Start: k.Start, End: k.End}
	}
	return out
}

func videoCutExpr(kept []model.KeptInterval) string {
	return fmt.Sprintf("select='%s',setpts=N/FRAME_RATE/TB", between("t", keptWindows(kept)))
}

func audioCutExpr(kept []model.KeptInterval) string {
	return fmt.Sprintf("aselect='%s',asetpts=N/SR/TB", between("t", keptWindows(kept)))
}

// Text passes two parsers: the graph parser splits on [],; and the option
// parser then splits on ':'. Each level gets its own backslash escaping.
var (
	optionEscaper = strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		"\r", " ",
		"\n", " ",
	)
	graphEscaper = strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`[`, `\[`,
		`]`, `\]`,
		`,`, `\,`,
		`;`, `\;`,
	)
)

func escapeText(s string) string {
	return graphEscaper.Replace(optionEscaper.Replace(s))
}

func overlayY(pos model.OverlayPosition) string {
	switch pos {
	case model.PositionTop:
		return "h*0.08"
	case model.PositionCenter:
		return "(h-text_h)/2"
	default:
		return "h*0.85-text_h"
	}
}

// overlayExpr draws literal text; expansion=none keeps '%' out of drawtext's
// own template syntax.
func overlayExpr(o model.Overlay) string {
	return fmt.Sprintf(
		"drawtext=text=%s:expansion=none:fontsize=%d:fontcolor=white:box=1:boxcolor=black@0.5:boxborderw=12:x=(w-text_w)/2:y=%s:enable='between(t,%s,%s)'",
		escapeText(o.Text), captionFontSize, overlayY(o.Position), num(o.Start), num(o.End))
}

func retimeExpr(speed float64) string {
	return fmt.Sprintf("setpts=PTS/%s", num(speed))
}

func duckExpr(windows []model.Interval, level float64) string {
	return fmt.Sprintf("volume='if(%s,1,%s)':eval=frame", between("t", windows), num(level))
}

func tempoExpr(speed float64) string {
	return fmt.Sprintf("atempo=%s", num(speed))
}
