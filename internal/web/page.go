package web

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/ytget/yolo-vision/internal/model"
)

// Option is a value/label pair rendered into a select
type Option struct {
	Value string
	Label string
}

// PageData feeds templates/index.html
type PageData struct {
	Lang              string
	T                 map[string]string
	Languages         []Option
	Sources           []Option
	Tasks             []Option
	Trackers          []Option
	ConfidencePercent int
}

// pageData builds the template data for lang
func (s *Server) pageData(lang string) PageData {
	t := s.i18n.Texts(lang)

	langs := make([]Option, 0, 3)
	for code, name := range s.i18n.GetAvailableLanguages() {
		langs = append(langs, Option{Value: code, Label: name})
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i].Value < langs[j].Value })

	return PageData{
		Lang:      s.i18n.Language(lang),
		T:         t,
		Languages: langs,
		Sources: []Option{
			{string(model.SourceImage), t[KeySourceImage]},
			{string(model.SourceVideo), t[KeySourceVideo]},
			{string(model.SourceStored), t[KeySourceStored]},
			{string(model.SourceWebcam), t[KeySourceWebcam]},
			{string(model.SourceRTSP), t[KeySourceRTSP]},
			{string(model.SourceYouTube), t[KeySourceYouTube]},
		},
		Tasks: []Option{
			{string(model.TaskDetect), t[KeyTaskDetect]},
			{string(model.TaskSegment), t[KeyTaskSegment]},
		},
		Trackers: []Option{
			{string(model.TrackerNone), t[KeyTrackerNone]},
			{string(model.TrackerByteTrack), "ByteTrack"},
			{string(model.TrackerBoTSORT), "BoT-SORT"},
		},
		ConfidencePercent: int(s.opts.DefaultConfidence*100 + 0.5),
	}
}

// requestLanguage picks ?lang=, then Accept-Language, then the configured default
func (s *Server) requestLanguage(c *gin.Context) string {
	if lang := c.Query("lang"); lang != "" {
		return s.i18n.Language(lang)
	}
	if accept := c.GetHeader("Accept-Language"); s.i18n.Supports(accept) {
		return s.i18n.Language(accept)
	}
	return s.i18n.Language(s.opts.Language)
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", s.pageData(s.requestLanguage(c)))
}
