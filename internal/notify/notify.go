// Package notify shares a cluster's photos and emails the link to the
// person who asked for them.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"text/template"

	"github.com/v1gneshkum4r21/face-clustering/internal/cluster"
	"github.com/v1gneshkum4r21/face-clustering/internal/config"
)

// Image is one file to publish.
type Image struct {
	Name string
	Path string
}

// Publisher uploads a cluster's images and returns a link to view them.
type Publisher interface {
	Publish(ctx context.Context, clusterID string, images []Image) (string, error)
}

// Mailer delivers a plain text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ClusterSource resolves the images of a cluster.
type ClusterSource interface {
	Cluster(id string) (cluster.Detail, error)
	ImagePath(id, name string) (string, error)
}

// Result reports whether a notification went out.
type Result struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
	Link   string `json:"link,omitempty"`
}

// Dispatcher publishes a cluster and mails the link.
type Dispatcher struct {
	clusters  ClusterSource
	publisher Publisher
	mailer    Mailer
	subject   *template.Template
	body      *template.Template
	app       config.AppConfig
}

// templateData is available to the subject and body templates.
type templateData struct {
	AppName      string
	AdminContact string
	ClusterID    string
	Link         string
}

// NewDispatcher parses the message templates. A nil publisher or mailer
// makes every Notify call fail with a reason instead of panicking.
func NewDispatcher(clusters ClusterSource, publisher Publisher, mailer Mailer, tmpl config.TemplatesConfig, app config.AppConfig) (*Dispatcher, error) {
	subject, err := template.New("subject").Parse(tmpl.MatchSubject)
	if err != nil {
		return nil, fmt.Errorf("parsing subject template: %w", err)
	}
	body, err := template.New("body").Parse(tmpl.MatchBody)
	if err != nil {
		return nil, fmt.Errorf("parsing body template: %w", err)
	}
	return &Dispatcher{
		clusters:  clusters,
		publisher: publisher,
		mailer:    mailer,
		subject:   subject,
		body:      body,
		app:       app,
	}, nil
}

func (d *Dispatcher) render(clusterID, link string) (string, string, error) {
	data := templateData{
		AppName:      d.app.Name,
		AdminContact: d.app.AdminContact,
		ClusterID:    clusterID,
		Link:         link,
	}
	var subject, body bytes.Buffer
	if err := d.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("rendering subject: %w", err)
	}
	if err := d.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("rendering body: %w", err)
	}
	return subject.String(), body.String(), nil
}

// Notify shares clusterID and emails the link to email. Failures are
// reported in the result; the caller decides what to do with the request.
func (d *Dispatcher) Notify(ctx context.Context, email, clusterID string) Result {
	if d.publisher == nil {
		return Result{Reason: "object storage is not configured"}
	}
	if d.mailer == nil {
		return Result{Reason: "email delivery is not configured"}
	}

	detail, err := d.clusters.Cluster(clusterID)
	if errors.Is(err, cluster.ErrNotFound) {
		return Result{Reason: "cluster not found"}
	}
	if err != nil {
		return Result{Reason: err.Error()}
	}
	if len(detail.Images) == 0 {
		return Result{Reason: "no images found in cluster"}
	}

	images := make([]Image, 0, len(detail.Images))
	for _, name := range detail.Images {
		path, err := d.clusters.ImagePath(clusterID, name)
		if err != nil {
			return Result{Reason: err.Error()}
		}
		images = append(images, Image{Name: name, Path: path})
	}

	link, err := d.publisher.Publish(ctx, clusterID, images)
	if err != nil {
		log.Printf("notify: publishing %s failed: %v", clusterID, err)
		return Result{Reason: fmt.Sprintf("failed to share cluster: %v", err)}
	}

	subject, body, err := d.render(clusterID, link)
	if err != nil {
		return Result{Reason: err.Error(), Link: link}
	}
	if err := d.mailer.Send(ctx, email, subject, body); err != nil {
		log.Printf("notify: mail for %s failed: %v", clusterID, err)
		return Result{Reason: fmt.Sprintf("failed to send email: %v", err), Link: link}
	}
	return Result{OK: true, Link: link}
}
