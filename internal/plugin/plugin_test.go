package plugin

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/massmux/QwenImageBot/internal"
	"github.com/massmux/QwenImageBot/internal/account"
	"github.com/massmux/QwenImageBot/internal/qwen"
	"github.com/massmux/QwenImageBot/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const resultURL = "https://dashscope-result.example.com/cat.png"

type fakeReplier struct {
	mu     sync.Mutex
	texts  []string
	images []Image
}

func (f *fakeReplier) ReplyText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeReplier) ReplyImage(_ context.Context, image Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images = append(f.images, image)
	return nil
}

// dashscope fakes the submit, task and edit endpoints.
type dashscope struct {
	server      *httptest.Server
	taskStatus  func(poll int) string
	editResult  string
	submitBody  atomic.Value
	submitAuth  atomic.Value
	editBody    atomic.Value
	editAuth    atomic.Value
	submitCalls int32
	editCalls   int32
	polls       int32
}

func newDashscope(t *testing.T) *dashscope {
	d := &dashscope{
		taskStatus: func(int) string { return "SUCCEEDED" },
		editResult: resultURL,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&d.submitCalls, 1)
		body, _ := io.ReadAll(r.Body)
		d.submitBody.Store(string(body))
		d.submitAuth.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"output":{"task_id":"task-1","task_status":"PENDING"},"request_id":"r1"}`))
	})
	mux.HandleFunc("/tasks/task-1", func(w http.ResponseWriter, r *http.Request) {
		poll := int(atomic.AddInt32(&d.polls, 1))
		switch status := d.taskStatus(poll); status {
		case "SUCCEEDED":
			_, _ = w.Write([]byte(`{"output":{"task_id":"task-1","task_status":"SUCCEEDED","results":[{"url":"` + resultURL + `"}]}}`))
		case "FAILED":
			_, _ = w.Write([]byte(`{"output":{"task_id":"task-1","task_status":"FAILED","code":"DataInspectionFailed","message":"Input data may contain inappropriate content."}}`))
		default:
			_, _ = w.Write([]byte(`{"output":{"task_id":"task-1","task_status":"` + status + `"}}`))
		}
	})
	mux.HandleFunc("/edit", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&d.editCalls, 1)
		body, _ := io.ReadAll(r.Body)
		d.editBody.Store(string(body))
		d.editAuth.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"output":{"choices":[{"message":{"role":"assistant","content":[{"image":"` + d.editResult + `"}]}}]}}`))
	})
	d.server = httptest.NewServer(mux)
	t.Cleanup(d.server.Close)
	return d
}

func (d *dashscope) client(attempts int) *qwen.Client {
	return qwen.NewClient(
		qwen.WithSubmitURL(d.server.URL+"/submit"),
		qwen.WithTaskURL(d.server.URL+"/tasks/"),
		qwen.WithEditURL(d.server.URL+"/edit"),
		qwen.WithPollInterval(time.Millisecond),
		qwen.WithPollAttempts(attempts),
	)
}

func testConfig(t *testing.T, key1, key2 string) internal.Config {
	cfg := internal.Config{Qwen: internal.QwenConfiguration{ApiKey1: key1, ApiKey2: key2}}
	require.NoError(t, cfg.Check())
	return cfg
}

func newTestPlugin(t *testing.T, d *dashscope, key1, key2 string) *Plugin {
	cfg := testConfig(t, key1, key2)
	store := session.New(cfg.Qwen.GlobalPromptExtend(), session.WithPendingEditTimeout(180*time.Second))
	return New(cfg, d.client(5), store, account.New(key1, key2))
}

func pngImage(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func text(s string) Event {
	return Event{Session: "alice", Text: s}
}

func TestDrawRepliesProgressThenImage(t *testing.T) {
	d := newDashscope(t)
	p := newTestPlugin(t, d, "k1", "k2")
	r := &fakeReplier{}

	require.True(t, p.Handle(context.Background(), text("Q画图 一只猫 --ar 16:9 --plus"), r))

	require.Len(t, r.texts, 1)
	assert.Equal(t, "正在使用 wan2.2-t2i-plus 模型以 16:9 比例生成图片，请稍候...", r.texts[0])
	require.Len(t, r.images, 1)
	assert.Equal(t, resultURL, r.images[0].URL)

	body := d.submitBody.Load().(string)
	assert.Equal(t, "一只猫", gjson.Get(body, "input.prompt").String())
	assert.Equal(t, "1664*928", gjson.Get(body, "parameters.size").String())
	assert.Equal(t, "wan2.2-t2i-plus", gjson.Get(body, "model").String())
	assert.True(t, gjson.Get(body, "parameters.prompt_extend").Bool())
	assert.Equal(t, "Bearer k1", d.submitAuth.Load())
}

func TestDrawWithoutPromptAsksForOne(t *testing.T) {
	d := newDashscope(t)
	p := newTestPlugin(t, d, "k1", "")
	r := &fakeReplier{}

	require.True(t, p.Handle(context.Background(), text("Q生成 --ar 16:9 --plus"), r))
	assert.Equal(t, []string{"请输入需要生成的图片描述"}, r.texts)
	assert.Empty(t, r.images)
	assert.Zero(t, atomic.LoadInt32(&d.submitCalls))
}

func TestUnrelatedMessagesAreIgnored(t *testing.T) {
	d := newDashscope(t)
	p := newTestPlugin(t, d, "k1", "")
	r := &fakeReplier{}

	assert.False(t, p.Handle(context.Background(), text("hello there"), r))
	assert.False(t, p.Handle(context.Background(), Event{Session: "alice", Image: &qwen.ImageSource{Data: pngImage(t)}}, r))
	assert.Empty(t, r.texts)
	assert.Empty(t, r.images)
}

func TestDrawTaskFailedReportsRemoteError(t *testing.T) {
	d := newDashscope(t)
	d.taskStatus = func(int) string { return "FAILED" }
	p := newTestPlugin(t, d, "k1", "")
	r := &fakeReplier{}

	p.Handle(context.Background(), text("Q画图 一只猫"), r)
	require.Len(t, r.texts, 2)
	assert.Equal(t, "任务执行失败: DataInspectionFailed - Input data may contain inappropriate content.", r.texts[1])
	assert.Empty(t, r.images)
}

func TestDrawPollTimeout(t *testing.T) {
	d := newDashscope(t)
	d.taskStatus = func(int) string { return "RUNNING" }
	p := newTestPlugin(t, d, "k1", "")
	r := &fakeReplier{}

	p.Handle(context.Background(), text("Q画图 一只猫"), r)
	require.Len(t, r.texts, 2)
	assert.Equal(t, "轮询超时，请稍后手动查询任务状态", r.texts[1])
	assert.Equal(t, int32(5), atomic.LoadInt32(&d.polls))
}

func TestDrawPendingThenSucceeded(t *testing.T) {
	d := newDashscope(t)
	d.taskStatus = func(poll int) string {
		if poll <= 3 {
			return "PENDING"
		}
		return "SUCCEEDED"
	}
	p := newTestPlugin(t, d, "k1", "")
	r := &fakeReplier{}

	p.Handle(context.Background(), text("Q画图 一只猫"), r)
	require.Len(t, r.images, 1)
	assert.Equal(t, resultURL, r.images[0].URL)
}

func TestControlTogglesPromptExtendPerSession(t *testing.T) {
	d := newDashscope(t)
	p := newTestPlugin(t, d, "k1", "")
	r := &fakeReplier{}

	p.Handle(context.Background(), text("Q禁用智能扩写"), r)
	assert.Equal(t, []string{"❌ 已禁用智能扩写功能"}, r.texts)
	assert.False(t, p.Sessions().PromptExtend("alice"))
	assert.True(t, p.Sessions().PromptExtend("bob"))

	p.Handle(context.Background(), text("Q画图 一只猫"), r)
	assert.False(t, gjson.Get(d.submitBody.Load().(string), "parameters.prompt_extend").Bool())

	p.Handle(context.Background(), text("Q开启智能扩写"), r)
	assert.Equal(t, "✅ 已开启智能扩写功能", r.texts[len(r.texts)-1])
	assert.True(t, p.Sessions().PromptExtend("alice"))
}

func TestSwitchToUnconfiguredAccountKeepsCurrent(t *testing.T) {
	d := newDashscope(t)
	p := newTestPlugin(t, d, "k1", "")
	r := &fakeReplier{}

	p.Handle(context.Background(), text("Q切换账号 2"), r)
	assert.Equal(t, []string{"❌ 账号 2 未配置API密钥"}, r.texts)
	n, key := p.Accounts().Current()
	assert.Equal(t, 1, n)
	assert.Equal(t, "k1", key)
}

func TestSwitchAccountChangesKeyOfLaterRequests(t *testing.T) {
	d := newDashscope(t)
	p := newTestPlugin(t, d, "k1", "k2")
	r := &fakeReplier{}

	p.Handle(context.Background(), text("Q切换账号 2"), r)
	assert.Equal(t, []string{"✅ 已切换到账号 2"}, r.texts)

	p.Handle(context.Background(), Event{Session: "bob", Text: "Q画图 一只狗"}, r)
	assert.Equal(t, "Bearer k2", d.submitAuth.Load())
}

func TestEditWaitsForNextImage(t *testing.T) {
	d := newDashscope(t)
	p := newTestPlugin(t, d, "k1", "")
	r := &fakeReplier{}

	require.True(t, p.Handle(context.Background(), text("Q改图 换成蓝色背景 --plus"), r))
	assert.Equal(t, []string{"请在 180 秒内发送需要编辑的图片"}, r.texts)
	assert.True(t, p.Sessions().Pending("alice"))
	assert.Zero(t, atomic.LoadInt32(&d.editCalls))

	// another session's image does not consume alice's instruction
	assert.False(t, p.Handle(context.Background(), Event{Session: "bob", Image: &qwen.ImageSource{Data: pngImage(t)}}, r))

	require.True(t, p.Handle(context.Background(), Event{Session: "alice", Image: &qwen.ImageSource{Data: pngImage(t)}}, r))
	assert.False(t, p.Sessions().Pending("alice"))
	require.Len(t, r.images, 1)
	assert.Equal(t, resultURL, r.images[0].URL)
	assert.Equal(t, "正在使用 qwen-image-edit-plus 模型编辑图片，请稍候...", r.texts[1])

	body := d.editBody.Load().(string)
	assert.Equal(t, "qwen-image-edit-plus", gjson.Get(body, "model").String())
	assert.Equal(t, "换成蓝色背景", gjson.Get(body, "input.messages.0.content.1.text").String())
	assert.True(t, strings.HasPrefix(gjson.Get(body, "input.messages.0.content.0.image").String(), "data:image/jpeg;base64,"))
	assert.Equal(t, "Bearer k1", d.editAuth.Load())

	// consumed, a second image is not for the plugin
	assert.False(t, p.Handle(context.Background(), Event{Session: "alice", Image: &qwen.ImageSource{Data: pngImage(t)}}, r))
}

func TestEditWithoutInstructionAsksForOne(t *testing.T) {
	d := newDashscope(t)
	p := newTestPlugin(t, d, "k1", "")
	r := &fakeReplier{}

	p.Handle(context.Background(), text("Q改图"), r)
	assert.Equal(t, []string{"请输入图片编辑指令，例如：Q改图 把背景换成海边"}, r.texts)
	assert.False(t, p.Sessions().Pending("alice"))
}

func TestEditReferencedImageRunsImmediately(t *testing.T) {
	d := newDashscope(t)
	p := newTestPlugin(t, d, "k1", "")
	r := &fakeReplier{}

	ev := Event{Session: "alice", Text: "Q编辑 加一顶帽子", Referenced: &qwen.ImageSource{Data: pngImage(t)}}
	require.True(t, p.Handle(context.Background(), ev, r))
	assert.Equal(t, int32(1), atomic.LoadInt32(&d.editCalls))
	assert.False(t, p.Sessions().Pending("alice"))
	require.Len(t, r.images, 1)
}

func TestEditCaptionedPhotoRunsImmediately(t *testing.T) {
	d := newDashscope(t)
	p := newTestPlugin(t, d, "k1", "")
	r := &fakeReplier{}

	ev := Event{Session: "alice", Text: "Q改图 换成黑白", Image: &qwen.ImageSource{Data: pngImage(t)}}
	require.True(t, p.Handle(context.Background(), ev, r))
	assert.Equal(t, int32(1), atomic.LoadInt32(&d.editCalls))
	require.Len(t, r.images, 1)
}

func TestEditCaptionedPhotoReplacesPendingEdit(t *testing.T) {
	d := newDashscope(t)
	p := newTestPlugin(t, d, "k1", "")
	r := &fakeReplier{}

	p.Handle(context.Background(), text("Q改图 换成蓝色背景"), r)
	require.True(t, p.Sessions().Pending("alice"))

	ev := Event{Session: "alice", Text: "Q改图 换成黑白", Image: &qwen.ImageSource{Data: pngImage(t)}}
	require.True(t, p.Handle(context.Background(), ev, r))
	assert.Equal(t, int32(1), atomic.LoadInt32(&d.editCalls))
	assert.Equal(t, "换成黑白", gjson.Get(d.editBody.Load().(string), "input.messages.0.content.1.text").String())
	assert.False(t, p.Sessions().Pending("alice"))

	// a later plain photo is not an edit request anymore
	assert.False(t, p.Handle(context.Background(), Event{Session: "alice", Image: &qwen.ImageSource{Data: pngImage(t)}}, r))
	assert.Equal(t, int32(1), atomic.LoadInt32(&d.editCalls))
}

func TestEditSendsNegativePromptOnlyWhenGiven(t *testing.T) {
	d := newDashscope(t)
	p := newTestPlugin(t, d, "k1", "")
	r := &fakeReplier{}
	photo := &qwen.ImageSource{Data: pngImage(t)}

	p.Handle(context.Background(), Event{Session: "alice", Text: "Q改图 换成黑白", Image: photo}, r)
	assert.False(t, gjson.Get(d.editBody.Load().(string), "parameters.negative_prompt").Exists())

	p.Handle(context.Background(), Event{Session: "alice", Text: "Q改图 换成黑白 --负面提示：模糊", Image: photo}, r)
	body := d.editBody.Load().(string)
	assert.Equal(t, "模糊", gjson.Get(body, "parameters.negative_prompt").String())
	assert.Equal(t, "换成黑白", gjson.Get(body, "input.messages.0.content.1.text").String())
}

func TestEditInlineResult(t *testing.T) {
	d := newDashscope(t)
	data := pngImage(t)
	d.editResult = "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
	p := newTestPlugin(t, d, "k1", "")
	r := &fakeReplier{}

	p.Handle(context.Background(), Event{Session: "alice", Text: "Q编辑 加一顶帽子", Referenced: &qwen.ImageSource{Data: data}}, r)
	require.Len(t, r.images, 1)
	assert.Empty(t, r.images[0].URL)
	assert.Equal(t, data, r.images[0].Data)
}

func TestEditUndecodableImage(t *testing.T) {
	d := newDashscope(t)
	p := newTestPlugin(t, d, "k1", "")
	r := &fakeReplier{}

	p.Handle(context.Background(), Event{Session: "alice", Text: "Q编辑 加一顶帽子", Referenced: &qwen.ImageSource{Data: []byte("not an image")}}, r)
	assert.Equal(t, "无法识别图片格式，请发送 PNG 或 JPEG 图片", r.texts[len(r.texts)-1])
	assert.Zero(t, atomic.LoadInt32(&d.editCalls))
}

func TestDisabledPluginRejectsCommands(t *testing.T) {
	d := newDashscope(t)
	p := newTestPlugin(t, d, "k1", "")
	r := &fakeReplier{}
	p.SetEnabled(false)

	require.True(t, p.Handle(context.Background(), text("Q画图 一只猫"), r))
	assert.Equal(t, []string{"画图功能已被管理员关闭"}, r.texts)
	assert.Zero(t, atomic.LoadInt32(&d.submitCalls))
	assert.False(t, p.Handle(context.Background(), text("hello"), r))

	p.SetEnabled(true)
	assert.True(t, p.Status().Enabled)
}

func TestHelp(t *testing.T) {
	d := newDashscope(t)
	p := newTestPlugin(t, d, "k1", "k2")
	r := &fakeReplier{}

	p.Handle(context.Background(), text("Q帮助"), r)
	require.Len(t, r.texts, 1)
	help := r.texts[0]
	assert.Contains(t, help, "Q画图, Q生成")
	assert.Contains(t, help, "16:9, 1:1, 2:3, 3:2, 3:4, 4:3, 9:16")
	assert.Contains(t, help, "当前账号：1")
	assert.Contains(t, help, "wan2.2-t2i-flash, wan2.2-t2i-plus")
}

func TestStatus(t *testing.T) {
	d := newDashscope(t)
	p := newTestPlugin(t, d, "k1", "k2")
	p.Handle(context.Background(), text("Q改图 换成蓝色背景"), &fakeReplier{})
	require.NoError(t, p.Accounts().Switch(2))

	assert.Equal(t, Status{Enabled: true, Account: 2, PendingEdits: 1}, p.Status())
}
