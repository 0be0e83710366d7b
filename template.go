package main

import (
	"bytes"
	"strings"
	"text/template"

	"pault.ag/go/debian/control"
	"pault.ag/go/debian/version"
)

const copyrightText = `The MIT License (MIT)

Copyright (c) 2018 Advanced Micro Devices, Inc.

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
`

// PackageFields are the per-build values filled into the package metadata
type PackageFields struct {
	Version    string
	Arch       string
	Maintainer string
}

// debianControl is the DEBIAN/control paragraph; field order is the order of the paragraph
type debianControl struct {
	Package      string
	Version      string
	Architecture string
	Maintainer   string
	Depends      string
	Conflicts    string
	Replaces     string
	Section      string
	Priority     string
	MultiArch    string `control:"Multi-Arch"`
	Homepage     string
	Description  string
}

// RenderControl produces the Debian control file for one architecture
func RenderControl(fields PackageFields) ([]byte, error) {
	if _, err := version.Parse(fields.Version); err != nil {
		return nil, newErrorf(invalidOption, "%s is not a valid Debian package version: %s", fields.Version, err)
	}

	paragraph := debianControl{
		Package:      "amdvlk",
		Version:      fields.Version,
		Architecture: fields.Arch,
		Maintainer:   fields.Maintainer,
		Depends:      "libc6 (>= 2.17), libgcc1 (>= 1:3.4), libstdc++6 (>= 5.2)",
		Conflicts:    "amdvlk",
		Replaces:     "amdvlk",
		Section:      "libs",
		Priority:     "optional",
		MultiArch:    "same",
		Homepage:     "https://github.com/GPUOpen-Drivers/AMDVLK",
		Description:  "AMD Open Source Driver for Vulkan",
	}

	var buf bytes.Buffer
	if err := control.Marshal(&buf, &paragraph); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var rpmSpecTemplate = template.Must(template.New("amdvlk.spec").Option("missingkey=error").Parse(`Name: amdvlk
Version: {{.Version}}
Release: el
Summary: AMD Open Source Driver for Vulkan
License: MIT
Group: AMD
Vendor: AMD
Packager: {{.Maintainer}}
Buildarch: {{.Arch}}

%description
AMD Open Source Driver for Vulkan
%prep
%build
%pre
%post
%preun
%postun
%files
/usr/lib64/amdvlk64.so
/usr/lib64/spvgen.so
/etc/vulkan/icd.d/amd_icd64.json
/usr/share/doc/amdvlk/copyright
%changelog
`))

// RenderRpmSpec produces the rpmbuild spec file
func RenderRpmSpec(fields PackageFields) ([]byte, error) {
	return renderTemplate(rpmSpecTemplate, fields)
}

// ChangelogFields feed the changelog shared by every package of a run
type ChangelogFields struct {
	Version     string
	Tag         string
	TargetRepo  string
	Description string
	Revisions   ComponentRevisions
}

func (f ChangelogFields) ReleaseUrl() string {
	return f.TargetRepo + rootRepoName + "/releases/tag/" + f.Tag
}

var changelogTemplate = template.Must(template.New("changelog").Option("missingkey=error").Parse(`amdvlk ({{.Version}}) unstable; urgency=low

  * Checkout from {{.TargetRepo}}{{"AMDVLK"}} at {{.Tag}}:
{{- range .Revisions}}
    {{$.TargetRepo}}{{.Name}}: {{.Revision}}
{{- end}}

{{.Description}}

For more detailed information, please check {{.ReleaseUrl}}
`))

// RenderChangelog produces the plain text changelog
func RenderChangelog(fields ChangelogFields) ([]byte, error) {
	fields.Description = strings.TrimRight(fields.Description, "\n")
	return renderTemplate(changelogTemplate, fields)
}

func renderTemplate(tmpl *template.Template, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
