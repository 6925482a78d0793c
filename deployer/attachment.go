package main

import (
	"encoding/base64"
	"log"
	"strings"
	"unicode/utf8"

	"code.linksmart.eu/dt/page-deployer/deployer/model"
)

// decodeAttachment decodes a base64 data URI attachment into plain text.
// Malformed attachments are dropped with a log entry, never an error.
func decodeAttachment(att model.Attachment) (content string, ok bool) {
	i := strings.Index(att.URL, ",")
	if i < 0 {
		log.Printf("attachments: %s: no data URI separator", att.Name)
		return "", false
	}
	data, err := base64.StdEncoding.DecodeString(att.URL[i+1:])
	if err != nil {
		log.Printf("attachments: error decoding %s: %s", att.Name, err)
		return "", false
	}
	if !utf8.Valid(data) {
		log.Printf("attachments: %s is not valid UTF-8 text", att.Name)
		return "", false
	}
	return string(data), true
}
