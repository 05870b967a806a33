package main

import (
	"flag"
	"log"
	"os"

	"github.com/danmuck/mdpwire/internal/config"
)

func main() {
	kind := flag.String("kind", "mdpctl", "config kind: mdpctl|schema")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	normalize := flag.Bool("normalize", false, "with -validate -kind schema, print the schema in canonical form")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}

		switch *kind {
		case "mdpctl":
			cfg, err := config.LoadConfig(path)
			if err != nil {
				log.Fatal(err)
			}
			if _, err := config.LoadSchemaFile(cfg.SchemaFile); err != nil {
				log.Fatal(err)
			}
		case "schema":
			sf, err := config.LoadSchemaFile(path)
			if err != nil {
				log.Fatal(err)
			}
			reg, err := config.BuildRegistry(sf, false)
			if err != nil {
				log.Fatal(err)
			}
			for _, err := range reg.Verify() {
				log.Printf("warning: %v", err)
			}
			if *normalize {
				out, err := config.MarshalSchema(sf)
				if err != nil {
					log.Fatal(err)
				}
				if _, err := os.Stdout.Write(out); err != nil {
					log.Fatal(err)
				}
			}
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
		log.Printf("Validated %s config at %s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}

func defaultPath(kind string) string {
	switch kind {
	case "mdpctl":
		return "cmd/mdpctl/config.toml"
	case "schema":
		return "cmd/mdpctl/schema.toml"
	default:
		log.Fatalf("unknown kind: %s", kind)
		return ""
	}
}
