package main

import (
	"errors"

	"gopkg.in/yaml.v3"
)

// mergeDataSources edits earth_engine.data_sources in a parsed config
// document, keeping comments and key order. New ids are appended; with
// prune, ids the backend no longer offers are dropped.
func mergeDataSources(doc *yaml.Node, offered []string, prune bool) (added, removed []string, err error) {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, nil, errors.New("config is not a YAML mapping")
	}
	ee := mappingValue(doc.Content[0], "earth_engine")
	if ee == nil {
		return nil, nil, errors.New("earth_engine section missing")
	}
	if ee.Kind != yaml.MappingNode {
		return nil, nil, errors.New("earth_engine is not a mapping")
	}
	seq := mappingValue(ee, "data_sources")
	if seq == nil {
		seq = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		ee.Content = append(ee.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "data_sources"}, seq)
	}
	if seq.Kind != yaml.SequenceNode {
		return nil, nil, errors.New("earth_engine.data_sources is not a list")
	}

	want := make(map[string]bool, len(offered))
	for _, id := range offered {
		want[id] = true
	}
	have := map[string]bool{}
	kept := seq.Content[:0]
	for _, n := range seq.Content {
		if prune && !want[n.Value] {
			removed = append(removed, n.Value)
			continue
		}
		have[n.Value] = true
		kept = append(kept, n)
	}
	seq.Content = kept
	for _, id := range offered {
		if have[id] {
			continue
		}
		have[id] = true
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: id})
		added = append(added, id)
	}
	return added, removed, nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}
