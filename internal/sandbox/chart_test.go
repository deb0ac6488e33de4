package sandbox

import (
	"bytes"
	"io"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pdfText(t *testing.T, data []byte) string {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, 1, r.NumPage())
	plain, err := r.GetPlainText()
	require.NoError(t, err)
	b, err := io.ReadAll(plain)
	require.NoError(t, err)
	return string(b)
}

func TestChart_LineChart(t *testing.T) {
	src := `import matplotlib.pyplot as plt
x = [1, 2, 3, 4]
plt.plot(x, [v * v for v in x], 'r--', label='squares')
plt.title('Growth')
plt.xlabel('step')
plt.ylabel('value')
plt.legend()
plt.savefig('/tmp/out/chart.png')
print('saved')`
	out := run(t, src)
	require.NoError(t, out.Err, Reason(out.Err))
	assert.Equal(t, "saved", out.Output)
	require.Len(t, out.Artifacts, 1)

	a := out.Artifacts[0]
	assert.Equal(t, "chart.pdf", a.Name)
	assert.Equal(t, "application/pdf", a.MediaType)
	assert.True(t, bytes.HasPrefix(a.Data, []byte("%PDF-")))

	text := pdfText(t, a.Data)
	for _, want := range []string{"Growth", "step", "squares"} {
		assert.Contains(t, text, want)
	}
}

func TestChart_ShowNamesFigures(t *testing.T) {
	src := `import matplotlib.pyplot as plt
fig, ax = plt.subplots()
ax.bar(['a', 'b'], [3, 5])
ax.set_title('Bars')
plt.show()
plt.figure()
plt.hist([1, 2, 2, 3, 3, 3], bins=3)
plt.show()`
	out := run(t, src)
	require.NoError(t, out.Err, Reason(out.Err))
	require.Len(t, out.Artifacts, 2)
	assert.Equal(t, "figure-1.pdf", out.Artifacts[0].Name)
	assert.Equal(t, "figure-2.pdf", out.Artifacts[1].Name)
	assert.Contains(t, pdfText(t, out.Artifacts[0].Data), "Bars")
}

func TestChart_Deterministic(t *testing.T) {
	src := "import matplotlib.pyplot as plt\nplt.scatter([1, 2, 3], [3, 1, 2])\nplt.savefig('s.pdf')"
	a, b := run(t, src), run(t, src)
	require.NoError(t, a.Err)
	require.Len(t, a.Artifacts, 1)
	require.Len(t, b.Artifacts, 1)
	assert.Equal(t, a.Artifacts[0].Data, b.Artifacts[0].Data)
}

func TestChart_ArtifactLimit(t *testing.T) {
	src := "import matplotlib.pyplot as plt\nplt.plot([1, 2])\nfor i in range(20):\n    plt.savefig('c.pdf')"
	out := run(t, src)
	assert.Equal(t, "ResourceLimit('artifact limit of 16 exceeded')", Reason(out.Err))
}

func TestChart_Errors(t *testing.T) {
	tests := map[string]string{
		"import matplotlib.pyplot as plt\nplt.plot([1, 2], [1])":      "ValueError(",
		"import matplotlib.pyplot as plt\nplt.figure(figsize=(0, 4))": "ValueError(",
		"import matplotlib.pyplot as plt\nplt.gca().nope":             "AttributeError(\"'Axes' object has no attribute 'nope'\")",
	}
	for src, prefix := range tests {
		out := run(t, src)
		require.Error(t, out.Err, src)
		assert.Contains(t, Reason(out.Err), prefix, src)
	}
}
