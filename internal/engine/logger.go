package engine

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"
)

// NewLogger returns the progress logger. Progress lines are only shown in
// verbose mode; warnings and errors always are.
func NewLogger(verbose bool, w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(progressFormatter{})
	if verbose {
		log.SetLevel(logrus.InfoLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	return log
}

// progressFormatter prints "++ message key=value ..." lines, with a "!! "
// prefix for warnings and worse.
type progressFormatter struct{}

func (progressFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	if e.Level <= logrus.WarnLevel {
		b.WriteString("!! ")
	} else {
		b.WriteString("++ ")
	}
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}
