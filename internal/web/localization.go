package web

import "strings"

// DefaultLanguage is used for missing translations
const DefaultLanguage = "en"

// Text keys for localization
const (
	KeyAppTitle       = "app_title"
	KeySource         = "source"
	KeySourceImage    = "source_image"
	KeySourceVideo    = "source_video"
	KeySourceStored   = "source_stored"
	KeySourceWebcam   = "source_webcam"
	KeySourceRTSP     = "source_rtsp"
	KeySourceYouTube  = "source_youtube"
	KeyTask           = "task"
	KeyTaskDetect     = "task_detect"
	KeyTaskSegment    = "task_segment"
	KeyConfidence     = "confidence"
	KeyTracker        = "tracker"
	KeyTrackerNone    = "tracker_none"
	KeyStart          = "start"
	KeyStop           = "stop"
	KeyRemove         = "remove"
	KeyUpload         = "upload"
	KeyDetect         = "detect"
	KeyEnterURL       = "enter_url"
	KeyEnterRTSP      = "enter_rtsp"
	KeyLoadPlaylist   = "load_playlist"
	KeySessions       = "sessions"
	KeyHistory        = "history"
	KeyFrames         = "frames"
	KeyStatus         = "status"
	KeyLanguage       = "language"
	KeyNoSessions     = "no_sessions"
	KeyPreview        = "preview"
	KeyPossibleFixes  = "possible_fixes"
	KeyPleaseEnterURL = "please_enter_url"
)

// Localization holds UI text translations
type Localization struct {
	texts map[string]map[string]string
}

// NewLocalization creates a new localization table
func NewLocalization() *Localization {
	l := &Localization{texts: make(map[string]map[string]string)}
	l.initializeTexts()
	return l
}

// Language normalizes a requested language, falling back to DefaultLanguage
func (l *Localization) Language(lang string) string {
	if l.Supports(lang) {
		return primaryTag(lang)
	}
	return DefaultLanguage
}

// Supports reports whether lang (or its primary tag) has translations
func (l *Localization) Supports(lang string) bool {
	_, ok := l.texts[primaryTag(lang)]
	return ok
}

// primaryTag turns "pt-BR,pt;q=0.9" into "pt"
func primaryTag(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_,;"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

// GetText returns localized text for the given key
func (l *Localization) GetText(lang, key string) string {
	if text, ok := l.texts[l.Language(lang)][key]; ok {
		return text
	}
	if text, ok := l.texts[DefaultLanguage][key]; ok {
		return text
	}
	return key
}

// Texts returns every key for lang with English filling the gaps
func (l *Localization) Texts(lang string) map[string]string {
	out := make(map[string]string, len(l.texts[DefaultLanguage]))
	for k, v := range l.texts[DefaultLanguage] {
		out[k] = v
	}
	for k, v := range l.texts[l.Language(lang)] {
		out[k] = v
	}
	return out
}

// GetAvailableLanguages returns map of available languages with their display names
func (l *Localization) GetAvailableLanguages() map[string]string {
	return map[string]string{
		"en": "English",
		"ru": "Русский",
		"pt": "Português",
	}
}

// initializeTexts initializes all text translations
func (l *Localization) initializeTexts() {
	l.texts["en"] = map[string]string{
		KeyAppTitle:       "YOLOv8 Object Detection",
		KeySource:         "Source",
		KeySourceImage:    "Image",
		KeySourceVideo:    "Video",
		KeySourceStored:   "Stored video",
		KeySourceWebcam:   "Webcam",
		KeySourceRTSP:     "RTSP",
		KeySourceYouTube:  "YouTube",
		KeyTask:           "Task",
		KeyTaskDetect:     "Detection",
		KeyTaskSegment:    "Segmentation",
		KeyConfidence:     "Model confidence",
		KeyTracker:        "Tracker",
		KeyTrackerNone:    "No tracking",
		KeyStart:          "Detect objects",
		KeyStop:           "Stop",
		KeyRemove:         "Remove",
		KeyUpload:         "Upload",
		KeyDetect:         "Detect",
		KeyEnterURL:       "YouTube video URL",
		KeyEnterRTSP:      "RTSP stream URL",
		KeyLoadPlaylist:   "Load playlist",
		KeySessions:       "Sessions",
		KeyHistory:        "History",
		KeyFrames:         "Frames",
		KeyStatus:         "Status",
		KeyLanguage:       "Language",
		KeyNoSessions:     "No sessions yet",
		KeyPreview:        "Preview",
		KeyPossibleFixes:  "Possible solutions",
		KeyPleaseEnterURL: "Please enter a URL",
	}

	l.texts["ru"] = map[string]string{
		KeyAppTitle:       "Обнаружение объектов YOLOv8",
		KeySource:         "Источник",
		KeySourceImage:    "Изображение",
		KeySourceVideo:    "Видео",
		KeySourceStored:   "Сохранённое видео",
		KeySourceWebcam:   "Веб-камера",
		KeySourceRTSP:     "RTSP",
		KeySourceYouTube:  "YouTube",
		KeyTask:           "Задача",
		KeyTaskDetect:     "Обнаружение",
		KeyTaskSegment:    "Сегментация",
		KeyConfidence:     "Уверенность модели",
		KeyTracker:        "Трекер",
		KeyTrackerNone:    "Без трекинга",
		KeyStart:          "Найти объекты",
		KeyStop:           "Стоп",
		KeyRemove:         "Удалить",
		KeyUpload:         "Загрузить",
		KeyDetect:         "Распознать",
		KeyEnterURL:       "URL видео YouTube",
		KeyEnterRTSP:      "URL RTSP потока",
		KeyLoadPlaylist:   "Загрузить плейлист",
		KeySessions:       "Сессии",
		KeyHistory:        "История",
		KeyFrames:         "Кадры",
		KeyStatus:         "Статус",
		KeyLanguage:       "Язык",
		KeyNoSessions:     "Сессий пока нет",
		KeyPreview:        "Просмотр",
		KeyPossibleFixes:  "Возможные решения",
		KeyPleaseEnterURL: "Пожалуйста, введите URL",
	}

	l.texts["pt"] = map[string]string{
		KeyAppTitle:       "Detecção de Objetos YOLOv8",
		KeySource:         "Fonte",
		KeySourceImage:    "Imagem",
		KeySourceVideo:    "Vídeo",
		KeySourceStored:   "Vídeo armazenado",
		KeySourceWebcam:   "Webcam",
		KeySourceRTSP:     "RTSP",
		KeySourceYouTube:  "YouTube",
		KeyTask:           "Tarefa",
		KeyTaskDetect:     "Detecção",
		KeyTaskSegment:    "Segmentação",
		KeyConfidence:     "Confiança do modelo",
		KeyTracker:        "Rastreador",
		KeyTrackerNone:    "Sem rastreamento",
		KeyStart:          "Detectar objetos",
		KeyStop:           "Parar",
		KeyRemove:         "Remover",
		KeyUpload:         "Enviar",
		KeyDetect:         "Detectar",
		KeyEnterURL:       "URL do vídeo do YouTube",
		KeyEnterRTSP:      "URL do stream RTSP",
		KeyLoadPlaylist:   "Carregar playlist",
		KeySessions:       "Sessões",
		KeyHistory:        "Histórico",
		KeyFrames:         "Quadros",
		KeyStatus:         "Status",
		KeyLanguage:       "Idioma",
		KeyNoSessions:     "Nenhuma sessão ainda",
		KeyPreview:        "Prévia",
		KeyPossibleFixes:  "Possíveis soluções",
		KeyPleaseEnterURL: "Por favor, digite uma URL",
	}
}
