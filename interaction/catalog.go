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

package interaction

import (
	"github.com/golang/glog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var zhMessages = map[string]string{
	"Could not start SwiftLint. Probably the toolchain is wrong.": "无法启动 SwiftLint，可能是工具链配置有误。",
	"Could not find SwiftLint: %s":                                "找不到 SwiftLint：%s",
	"SwiftLint crashed. This is a known issue of SwiftLint.":      "SwiftLint 崩溃了，这是 SwiftLint 的已知问题。",
	"SwiftLint failed. %s":                                        "SwiftLint 运行失败。%s",
	"An unknown error occurred. %s":                               "发生未知错误。%s",
	ActionReset:                                                   "重置",
	ActionConfigure:                                               "配置",
	ActionSeeReport:                                               "查看报告",
	ActionReportIssue:                                             "报告问题",
}

func init() {
	for key, msg := range zhMessages {
		if err := message.SetString(language.Chinese, key, msg); err != nil {
			glog.Errorf("message.SetString(%q): %v", key, err)
		}
	}
}
