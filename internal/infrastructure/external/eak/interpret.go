package eak

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/garyjia/eak-connector/internal/domain/fault"
	"golang.org/x/net/html"
)

// remoteErrorCodes lists the ErrorCode values eAK documents
var remoteErrorCodes = map[string]string{
	"60": "Illegal authentication phrase",
	"65": "Compulsory element missing. 'since' attribute missing or illegal value",
	"80": "Unknown error has occurred. Document already received",
}

// envelopeScan is what interpret needs from a response envelope
type envelopeScan struct {
	wellFormed   bool
	hasErrorCode bool
	errorCode    string
	errorMessage string
	faultCode    string
	faultString  string
}

// scanEnvelope walks the response tokens and records the first ErrorCode,
// faultcode and faultstring elements regardless of namespace.
func scanEnvelope(body []byte) envelopeScan {
	var scan envelopeScan
	dec := xml.NewDecoder(bytes.NewReader(body))
	var text strings.Builder
	sawElement := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			scan.wellFormed = sawElement
			return scan
		}
		if err != nil {
			return scan
		}

		switch t := tok.(type) {
		case xml.StartElement:
			sawElement = true
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			value := strings.TrimSpace(text.String())
			text.Reset()
			switch t.Name.Local {
			case "ErrorCode":
				if !scan.hasErrorCode {
					scan.hasErrorCode = true
					scan.errorCode = value
				}
			case "ErrorMessage", "ErrorText":
				if scan.errorMessage == "" {
					scan.errorMessage = value
				}
			case "faultcode":
				if scan.faultCode == "" {
					scan.faultCode = value
				}
			case "faultstring":
				if scan.faultString == "" {
					scan.faultString = value
				}
			}
		}
	}
}

// interpret inspects a body that passed the status check and returns a fault
// when it carries a remote error, or nil when the payload is usable.
func interpret(action string, status int, body []byte) *fault.Fault {
	scan := scanEnvelope(body)

	if scan.hasErrorCode && errorCodeSet(scan.errorCode) {
		return &fault.Fault{
			Op:      action,
			Kind:    fault.RemoteProtocol,
			Status:  status,
			Code:    scan.errorCode,
			Message: remoteMessage(scan),
			Raw:     string(body),
		}
	}

	if scan.faultCode != "" && scan.faultString != "" {
		return &fault.Fault{
			Op:      action,
			Kind:    fault.RemoteProtocol,
			Status:  status,
			Code:    scan.faultCode,
			Message: scan.faultCode + " : " + scan.faultString,
			Raw:     string(body),
		}
	}

	if spans := scrapeSpans(body); len(spans) > 0 {
		return &fault.Fault{
			Op:      action,
			Kind:    fault.RemoteHTML,
			Status:  status,
			Code:    "html",
			Message: strings.Join(spans, "\n"),
			Raw:     string(body),
		}
	}

	if !scan.wellFormed {
		return &fault.Fault{
			Op:      action,
			Kind:    fault.RemoteProtocol,
			Status:  status,
			Message: "response is not a readable XML document",
			Raw:     string(body),
		}
	}

	if status == http.StatusInternalServerError {
		return &fault.Fault{
			Op:      action,
			Kind:    fault.HTTP,
			Status:  status,
			Message: http.StatusText(status),
			Raw:     string(body),
		}
	}
	return nil
}

// errorCodeSet reports whether an ErrorCode value signals an error.
// Non-numeric codes count as errors.
func errorCodeSet(code string) bool {
	if code == "" {
		return false
	}
	n, err := strconv.Atoi(code)
	return err != nil || n != 0
}

func remoteMessage(scan envelopeScan) string {
	if scan.faultCode != "" && scan.faultString != "" {
		return scan.faultCode + " : " + scan.faultString
	}
	if scan.errorMessage != "" {
		return scan.errorMessage
	}
	if known, ok := remoteErrorCodes[scan.errorCode]; ok {
		return fmt.Sprintf("%s : %s", scan.errorCode, known)
	}
	return "ErrorCode " + scan.errorCode
}

// scrapeSpans returns the visible text of every span element in an HTML
// error page. It is best effort and returns nil when nothing is found.
func scrapeSpans(body []byte) []string {
	if !bytes.Contains(bytes.ToLower(body), []byte("<span")) {
		return nil
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var spans []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "span" {
			if text := strings.TrimSpace(nodeText(n)); text != "" {
				spans = append(spans, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return spans
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
