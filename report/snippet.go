/*
NaiveSystems Analyze - A tool for static code analysis
Copyright (C) 2023  Naive Systems Ltd.

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package report

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/glog"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

const snippetContext = 2

func convertCharset(b []byte, charset string) string {
	e, err := ianaindex.MIME.Encoding(charset)
	if err != nil || e == nil {
		glog.Warningf("unknown charset %q, the source is considered as UTF-8", charset)
		return string(b)
	}
	reader := transform.NewReader(bytes.NewReader(b), e.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		glog.Warningf("failed to decode %s source: %v", charset, err)
		return string(b)
	}
	return string(decoded)
}

// Snippet returns the source lines around the 1-based line of path, the
// reported line marked with '>'. Sources in other charsets than UTF-8 are
// decoded first.
func Snippet(path string, line int, charset string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	utf8 := charset == "" || strings.EqualFold(charset, "utf8") || strings.EqualFold(charset, "utf-8")
	scanner := bufio.NewScanner(file)
	var output strings.Builder
	for count := 1; scanner.Scan(); count++ {
		if count < line-snippetContext {
			continue
		} else if count > line+snippetContext {
			break
		}
		text := scanner.Text()
		if !utf8 {
			text = convertCharset(scanner.Bytes(), charset)
		}
		if count == line {
			fmt.Fprintf(&output, "> %d| %s\n", count, text)
		} else {
			fmt.Fprintf(&output, "%d| %s\n", count, text)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return output.String(), nil
}
