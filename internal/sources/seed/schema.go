package seed

// Config is the top-level structure of the seed file.
//
//	images:
//	  - file: 1700000000000-cat.jpg   # resolved against the bucket public URL
//	    alt: Cat
//	    description: Oil on canvas
//	    category: finished
//	    year: 2023
//	    width: 2
//	  - src: https://cdn.example.com/dog.png
//	    ...
//	links:
//	  - text: GitHub
//	    url: https://github.com/someone
type Config struct {
	Images []ImageEntry `yaml:"images"`
	Links  []LinkEntry  `yaml:"links"`
}

// ImageEntry references an existing binary either by absolute src or by
// object key (file).
type ImageEntry struct {
	Src         string `yaml:"src,omitempty"`
	File        string `yaml:"file,omitempty"`
	Alt         string `yaml:"alt"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	Year        int    `yaml:"year"`
	Width       int    `yaml:"width,omitempty"`
}

type LinkEntry struct {
	Text string `yaml:"text"`
	URL  string `yaml:"url"`
}
