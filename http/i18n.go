package http

import (
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys for user-facing error pages. English text doubles as the key.
const (
	msgArchiveDisabled     = "ZIP download is turned off."
	msgDownloadOneByOne    = "Files need to be downloaded one by one."
	msgTooLarge            = "Selected files too large to generate zip file."
	msgTooLargeHint        = "Download the files in smaller chunks, separately or kindly ask your administrator."
	msgTooLargeDetail      = "The selection is %s, the limit is %s."
	msgBackToFiles         = "Back to Files"
	msgNotFound            = "Not Found"
	msgNotFoundDetail      = "The requested path %s could not be found on this server."
	msgArchiveFailedDetail = "The archive for %s could not be produced."
)

var supportedLanguages = []language.Tag{
	language.English,
	language.German,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

func init() {
	de := language.German
	for key, text := range map[string]string{
		msgArchiveDisabled:     "Der ZIP-Download ist deaktiviert.",
		msgDownloadOneByOne:    "Die Dateien müssen einzeln heruntergeladen werden.",
		msgTooLarge:            "Die ausgewählten Dateien sind zu groß, um eine ZIP-Datei zu erstellen.",
		msgTooLargeHint:        "Lade die Dateien in kleineren Teilen oder einzeln herunter oder frage deinen Administrator.",
		msgTooLargeDetail:      "Die Auswahl ist %s groß, das Limit liegt bei %s.",
		msgBackToFiles:         "Zurück zu den Dateien",
		msgNotFound:            "Nicht gefunden",
		msgNotFoundDetail:      "Der angeforderte Pfad %s wurde auf diesem Server nicht gefunden.",
		msgArchiveFailedDetail: "Das Archiv für %s konnte nicht erstellt werden.",
	} {
		if err := message.SetString(de, key, text); err != nil {
			panic(err)
		}
	}
}

// printerFor picks the best supported language from the Accept-Language header.
func printerFor(r *http.Request) (*message.Printer, language.Tag) {
	_, idx := language.MatchStrings(languageMatcher, r.Header.Get("Accept-Language"))
	tag := supportedLanguages[idx]
	return message.NewPrinter(tag), tag
}
