package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ee-insight/config"
	"ee-insight/earthengine"
	"ee-insight/utils"
)

func backupFile(yamlPath string) error {
	src := utils.ResolvePath(yamlPath)
	stat, err := os.Stat(src)
	if err != nil {
		return err
	}
	date := stat.ModTime().Format("20060102-1504")
	bakdir := filepath.Join(utils.GetProjectRoot(), "archives")
	if err := utils.EnsureDirExists(bakdir); err != nil {
		return err
	}
	dst := filepath.Join(bakdir, fmt.Sprintf("%s.%s", filepath.Base(yamlPath), date))
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func main() {
	var (
		yamlFile    string
		catalogFile string
		dryRun      bool
		prune       bool
	)
	flag.StringVar(&yamlFile, "yaml", "config.yaml", "Config file to update")
	flag.StringVar(&catalogFile, "catalog", "", "Also write the dataset descriptions to this YAML file")
	flag.BoolVar(&dryRun, "dry-run", false, "Simulate without updating files")
	flag.BoolVar(&prune, "prune", false, "Remove data sources the backend no longer offers")
	flag.Parse()

	cfg, err := config.Load(yamlFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed loading %s : %v\n", yamlFile, err)
		os.Exit(2)
	}

	client := earthengine.NewClient(cfg.EarthEngine.APIURL,
		earthengine.WithToken(cfg.EarthEngine.Token),
		earthengine.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	)
	datasets, err := client.Datasets(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed listing Earth Engine datasets : %v\n", err)
		os.Exit(2)
	}
	if len(datasets) == 0 {
		fmt.Println("No datasets available, nothing to do.")
		return
	}
	ids := make([]string, 0, len(datasets))
	for _, d := range datasets {
		ids = append(ids, d.ID)
	}

	raw, err := os.ReadFile(utils.ResolvePath(yamlFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed reading %s : %v\n", yamlFile, err)
		os.Exit(2)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		fmt.Fprintf(os.Stderr, "Failed parsing %s : %v\n", yamlFile, err)
		os.Exit(2)
	}
	added, removed, err := mergeDataSources(&doc, ids, prune)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed updating %s : %v\n", yamlFile, err)
		os.Exit(2)
	}

	if len(added) == 0 && len(removed) == 0 {
		fmt.Println("No modification needed. Everything is up-to-date.")
	} else {
		fmt.Println("Changes summary :")
		if len(added) > 0 {
			fmt.Println("  Data sources added   :", strings.Join(added, ", "))
		}
		if len(removed) > 0 {
			fmt.Println("  Data sources removed :", strings.Join(removed, ", "))
		}
	}

	var out bytes.Buffer
	enc := yaml.NewEncoder(&out)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		fmt.Fprintf(os.Stderr, "Marshal YAML error : %v\n", err)
		os.Exit(2)
	}
	enc.Close()

	changed := len(added) > 0 || len(removed) > 0
	switch {
	case dryRun && changed:
		fmt.Print("\n--- YAML would be : ---\n\n")
		fmt.Println(out.String())
	case changed:
		if err := backupFile(yamlFile); err != nil {
			fmt.Fprintf(os.Stderr, "Backup error : %v\n", err)
			os.Exit(2)
		}
		if err := os.WriteFile(utils.ResolvePath(yamlFile), out.Bytes(), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Writing YAML error : %v\n", err)
			os.Exit(2)
		}
		fmt.Println("Update done. Backup sent to archives/")
	}

	if catalogFile != "" && !dryRun {
		catalog, err := yaml.Marshal(map[string][]earthengine.Dataset{"datasets": datasets})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Marshal catalog error : %v\n", err)
			os.Exit(2)
		}
		if err := os.WriteFile(utils.ResolvePath(catalogFile), catalog, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Writing catalog error : %v\n", err)
			os.Exit(2)
		}
		fmt.Printf("%d datasets written to %s\n", len(datasets), catalogFile)
	}
}
