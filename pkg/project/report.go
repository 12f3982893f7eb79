package project

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/kbmatrix/pkg/router"
)

// Report summarizes a generation run in logs/routing.yaml.
type Report struct {
	Project     string             `yaml:"project"`
	Keys        int                `yaml:"keys"`
	Routing     string             `yaml:"routing"`
	TrackWidth  float64            `yaml:"trackWidth"`
	Clearance   float64            `yaml:"clearance"`
	Nets        []ReportNet        `yaml:"nets"`
	Connected   int                `yaml:"connected"`
	Unconnected []ReportConnection `yaml:"unconnected,omitempty"`
	Duplicates  [][]string         `yaml:"duplicates,omitempty"`
}

// ReportNet is one net with its pad count.
type ReportNet struct {
	Code int    `yaml:"code"`
	Name string `yaml:"name"`
	Pads int    `yaml:"pads"`
}

// ReportConnection is a connection the router gave up on.
type ReportConnection struct {
	Net    string `yaml:"net"`
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Reason string `yaml:"reason"`
}

// NewReport collects the report for a rendered project.
func NewReport(name string, in Input) *Report {
	r := &Report{
		Project:    name,
		Routing:    in.Mode.String(),
		TrackWidth: in.TrackWidth,
		Clearance:  in.Clearance,
	}
	if in.Layout != nil {
		r.Keys = len(in.Layout.Keys)
	}
	for _, n := range in.Routing.Nets {
		r.Nets = append(r.Nets, ReportNet{Code: n.Code, Name: string(n.Name), Pads: len(n.Nodes)})
	}
	for _, t := range in.Routing.Tracks {
		if t.Status == router.Connected {
			r.Connected++
			continue
		}
		r.Unconnected = append(r.Unconnected, ReportConnection{
			Net:    string(t.Net),
			From:   t.From.String(),
			To:     t.To.String(),
			Reason: t.Reason,
		})
	}
	for _, group := range in.Duplicates {
		refs := make([]string, len(group))
		for i, idx := range group {
			refs[i] = fmt.Sprintf("SW%d", idx+1)
		}
		r.Duplicates = append(r.Duplicates, refs)
	}
	return r
}

func writeReport(b *bytes.Buffer, r *Report) error {
	enc := yaml.NewEncoder(b)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
