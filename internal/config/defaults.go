package config

const (
	defaultPIPDir          = "~/.local/share/distiller/pips"
	defaultSIPDir          = "~/.local/share/distiller/sips"
	defaultLogDir          = "~/.local/share/distiller/logs"
	defaultSourceBaseURL   = "https://www.dailyprincetonian.com"
	defaultSourceSection   = "news"
	defaultSourcePerPage   = 100
	defaultSourceTimeout   = 30
	defaultSourceRate      = 4.0
	defaultSourceRetries   = 2
	defaultMediaCDN        = "https://snworksceo.imgix.net"
	defaultMediaPrefix     = "pri"
	defaultPublicationName = "The Daily Princetonian"
	defaultTemplate        = "article.html.tmpl"
	defaultStylesheet      = "article.css"
	defaultPDFEngine       = "weasyprint"
	defaultPageText        = "pdftotext"
	defaultRasterizer      = "pdftoppm"
	defaultToolTimeout     = 120
	defaultImageDPI        = 150
	defaultCompileAgent    = "distiller"
	defaultPublisher       = "Princeton University Library, Digital Initiatives"
	defaultObjIDPrefix     = "urn:PUL:periodicals:daily-princetonian"
	defaultWorkers         = 4
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			PIPDir: defaultPIPDir,
			SIPDir: defaultSIPDir,
			LogDir: defaultLogDir,
		},
		Source: Source{
			BaseURL:         defaultSourceBaseURL,
			Section:         defaultSourceSection,
			PerPage:         defaultSourcePerPage,
			TimeoutSeconds:  defaultSourceTimeout,
			RequestsPerSec:  defaultSourceRate,
			MaxRetries:      defaultSourceRetries,
			MediaCDN:        defaultMediaCDN,
			MediaPrefix:     defaultMediaPrefix,
			DownloadMedia:   true,
			PublicationName: defaultPublicationName,
		},
		Render: Render{
			Template:   defaultTemplate,
			Stylesheet: defaultStylesheet,
		},
		Tools: Tools{
			PDFEngine:      defaultPDFEngine,
			PageText:       defaultPageText,
			Rasterizer:     defaultRasterizer,
			TimeoutSeconds: defaultToolTimeout,
		},
		ALTO: ALTO{
			PerPage: true,
		},
		Images: Images{
			DPI: defaultImageDPI,
		},
		Compile: Compile{
			Agent:       defaultCompileAgent,
			Publisher:   defaultPublisher,
			ObjIDPrefix: defaultObjIDPrefix,
			MaxExcluded: 0,
		},
		Workflow: Workflow{
			Workers: defaultWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
