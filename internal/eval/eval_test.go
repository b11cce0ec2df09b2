// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nickandperla.net/tagx/internal/debug"
	"nickandperla.net/tagx/internal/store"
)

func newTestEvaluator(opts ...Option) *Evaluator {
	return New(append([]Option{WithNoStdlib(), WithErrorFormat(FormatPlain)}, opts...)...)
}

func render(t *testing.T, src string, opts ...Option) *Result {
	t.Helper()
	res, err := newTestEvaluator(opts...).Render(context.Background(), src, Context{})
	require.NoError(t, err)
	return res
}

func TestPlainTextTakesOnePass(t *testing.T) {
	res := render(t, "hello world")
	assert.Equal(t, "hello world", res.Text)
	assert.Equal(t, 1, res.Passes)
	assert.False(t, res.Failed)
	assert.NotEmpty(t, res.RequestID)
}

func TestVarAndExpr(t *testing.T) {
	res := render(t, `[@VAR name=x value=2][@EXPR value=x*3]`)
	assert.Equal(t, "6", res.Text)
}

func TestDeferredTagRunsNextPass(t *testing.T) {
	res := render(t, `[@VAR name=x value=1][@@EXPR value=x][@SET name=x value=2]`)
	assert.Equal(t, "2", res.Text)
	assert.Equal(t, 2, res.Passes)
}

func TestEscapedMarkerIsText(t *testing.T) {
	res := render(t, `[[@EXPR value=1]`)
	assert.Equal(t, "[@EXPR value=1]", res.Text)
}

func TestLiteralIsNotExpanded(t *testing.T) {
	res := render(t, `[@LITERAL][@EXPR value=1][/@LITERAL]`)
	assert.Equal(t, "[@EXPR value=1]", res.Text)
	assert.Equal(t, 1, res.Passes)
}

func TestScopeStackBalanced(t *testing.T) {
	e := newTestEvaluator()
	req, err := e.NewRequest(context.Background(), Context{})
	require.NoError(t, err)
	_, err = req.Render(`[@LOOP count=2][@BLOCK][@IF cond=true]x[/@IF][/@BLOCK][/@LOOP]`)
	require.NoError(t, err)
	assert.Equal(t, 1, req.Stack().Depth())
	assert.Equal(t, req.Stack().Pushes(), req.Stack().Pops())
	assert.Positive(t, req.Stack().Pushes())
}

func TestBlockTransparency(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"opaque", `[@BLOCK][@VAR name=a value=1][/@BLOCK][@GET name=a default="none"]`, "none"},
		{"transparent", `[@BLOCK transparent][@VAR name=a value=1][/@BLOCK][@EXPR value=a]`, "1"},
		{"transparent keeps outer", `[@VAR name=a value=1][@BLOCK transparent][@VAR name=a value=2][/@BLOCK][@EXPR value=a]`, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, tt.src).Text)
		})
	}
}

func TestLoop(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"count", `[@LOOP count=3 index=i][@EXPR value=i][/@LOOP]`, "012"},
		{"divider", `[@LOOP count=3 index=i divider=","][@EXPR value=i][/@LOOP]`, "0,1,2"},
		{"range", `[@LOOP from=2 to=6 step=2 index=i][@EXPR value=i][/@LOOP]`, "246"},
		{"descending", `[@LOOP from=3 to=1 index=i][@EXPR value=i][/@LOOP]`, "321"},
		{"zero", `[@LOOP count=0]x[/@LOOP]`, ""},
		{"break variable", `[@LOOP count=-1 index=i break=stop][@EXPR value=i][@IF i == 2][@SET name=stop value=true][/@IF][/@LOOP]`, "012"},
		{"last", `[@LOOP count=5 index=i][@EXPR value=i][@IF i == 1][@LAST][/@IF][/@LOOP]`, "01"},
		{"discard", `[@LOOP count=3 index=i discard=skip][@IF i == 1][@SET name=skip value=true][/@IF]<[@EXPR value=i]>[/@LOOP]`, "<0><2>"},
		{"break and discard together", `[@LOOP count=5 index=i break=stop discard=skip]<[@EXPR value=i]>[@IF i == 1][@SET name=stop value=true][@SET name=skip value=true][/@IF][/@LOOP]`, "<0>"},
		{"last with discard", `[@LOOP count=5 index=i]<[@EXPR value=i]>[@IF i == 2][@LAST discard][/@IF][/@LOOP]`, "<0><1>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := render(t, tt.src)
			assert.Equal(t, tt.want, res.Text)
			assert.False(t, res.Failed)
		})
	}
}

func TestLoopStepZero(t *testing.T) {
	res := render(t, `[@LOOP from=0 to=3 step=0]BODY[/@LOOP]`)
	assert.True(t, res.Failed)
	assert.NotContains(t, res.Text, "BODY")
	require.Len(t, res.Errors, 1)
	assert.Equal(t, KindEval, res.Errors[0].Kind)
	assert.Contains(t, res.Errors[0].Msg, "step")
}

func TestList(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"separator", `[@LIST items="a,b,c" separator=","][@EXPR value=item][@ITERATION][/@LIST]`, "a1b2c3"},
		{"list value", `[@LIST items=list("x","y") item=v divider="|"][@EXPR value=v][/@LIST]`, "x|y"},
		{"iterator", `[@LIST items=list(5,6) iterator=n][@EXPR value=n][/@LIST]`, "12"},
		{"empty", `[@LIST items=list()]x[/@LIST]`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, tt.src).Text)
		})
	}
}

func TestIfSelectsOneBranch(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"first true skips later guards", `[@VAR name=n value=0][@IF cond=true]A[@ELSEIF cond=script:set("n",1)]B[/@IF][@EXPR value=n]`, "A0"},
		{"later guard runs when needed", `[@VAR name=n value=0][@IF cond=false]A[@ELSEIF cond=script:set("n",1)]B[/@IF][@EXPR value=n]`, "B1"},
		{"else", `[@IF cond=false]A[@ELSE]B[@ENDIF]`, "B"},
		{"none", `[@IF cond=false]A[/@IF]z`, "z"},
		{"expression guard", `[@VAR name=x value=3][@IF x > 2 && x < 5]in[@ELSE]out[/@IF]`, "in"},
		{"undefined is false", `[@IF nothing]A[@ELSE]B[/@IF]`, "B"},
		{"nested", `[@IF cond=true]a[@IF cond=false]b[@ELSE]c[/@IF]d[@ELSE]e[/@IF]`, "acd"},
		{"literal body in branch", `[@IF cond=true]a[@LITERAL][@ELSE][/@LITERAL]b[@ELSE]c[/@IF]`, "a[@ELSE]b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, tt.src).Text)
		})
	}
}

func TestStrayElseIsParseError(t *testing.T) {
	res, err := newTestEvaluator().Render(context.Background(), `ok[@ELSE]x`, Context{})
	require.Error(t, err)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, KindParse, e.Kind)
	require.NotNil(t, res)
	assert.True(t, strings.HasPrefix(res.Text, "ok[ERROR"))
}

func TestIncludeOnce(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"same name different bodies", `[@INCLUDE_ONCE name=x]A[/@INCLUDE_ONCE][@INCLUDE_ONCE name=x]B[/@INCLUDE_ONCE]`, "A"},
		{"bare name", `[@INCLUDE_ONCE css]A[/@INCLUDE_ONCE][@INCLUDE_ONCE css]B[/@INCLUDE_ONCE]`, "A"},
		{"key property", `[@INCLUDE_ONCE key=css]<style>[/@INCLUDE_ONCE][@INCLUDE_ONCE key=css]<style>[/@INCLUDE_ONCE]`, "<style>"},
		{"distinct names", `[@INCLUDE_ONCE name=a]A[/@INCLUDE_ONCE][@INCLUDE_ONCE name=b]B[/@INCLUDE_ONCE]`, "AB"},
		{"body as key", `[@INCLUDE_ONCE]A[/@INCLUDE_ONCE][@INCLUDE_ONCE]A[/@INCLUDE_ONCE][@INCLUDE_ONCE]B[/@INCLUDE_ONCE]`, "AB"},
		{"inside loop", `[@LOOP count=3 index=i][@INCLUDE_ONCE name=x]<[@EXPR value=i]>[/@INCLUDE_ONCE][/@LOOP]`, "<0>"},
		{"inside block", `[@BLOCK][@INCLUDE_ONCE name=x]A[/@INCLUDE_ONCE][/@BLOCK][@INCLUDE_ONCE name=x]B[/@INCLUDE_ONCE]`, "A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := render(t, tt.src)
			assert.Equal(t, tt.want, res.Text)
			assert.Empty(t, res.Errors)
		})
	}
}

func TestProcedures(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"by value", `[@PROCEDURE name=greet $who]Hello [@EXPR value=who]![/@PROCEDURE][@greet who="Ann"]`, "Hello Ann!"},
		{"call tag", `[@PROCEDURE name=greet $who]Hi [@EXPR value=who][/@PROCEDURE][@CALL name=greet who="Bo"]`, "Hi Bo"},
		{"default", `[@PROCEDURE name=greet $who="you"]Hi [@EXPR value=who][/@PROCEDURE][@greet]`, "Hi you"},
		{"output param", `[@PROCEDURE name=inc $n=output][@SET name=n value=n+1][/@PROCEDURE][@VAR name=x value=1][@inc n=$x][@EXPR value=x]`, "2"},
		{"returned with text", `[@PROCEDURE name=shout returnText $s $r=returned][@EXPR value=upper(s)][/@PROCEDURE][@shout s="hi" r=$out][@EXPR value=out]`, "HIHI"},
		{"returned value", `[@PROCEDURE name=sq $v $r=returned][@RETURN value=v*v][/@PROCEDURE][@sq v=4 r=$res][@EXPR value=res]`, "16"},
		{"expression call", `[@PROCEDURE name=twice $v][@RETURN value=v*2][/@PROCEDURE][@EXPR value=call("twice", 21)]`, "42"},
		{"inner", `[@PROCEDURE name=em inner]<em>[@EXPR value=inner]</em>[/@PROCEDURE][@em]a[@EXPR value=1+1][/@em]`, "<em>a2</em>"},
		{"caller locals hidden", `[@PROCEDURE name=peek][@GET name=secret default="hidden"][/@PROCEDURE][@BLOCK][@VAR name=secret value=1][@peek][/@BLOCK]`, "hidden"},
		{"globals visible", `[@VAR name=g value=1][@PROCEDURE name=peek][@EXPR value=g][/@PROCEDURE][@BLOCK][@peek][/@BLOCK]`, "1"},
		{"output param with returnText", `[@PROCEDURE name=wrap returnText $o=output][@SET name=o value="set"]body[/@PROCEDURE][@VAR name=x value=0][@wrap o=$x]|[@EXPR value=x]`, "body|set"},
		{"output param with return value", `[@PROCEDURE name=w $o=output][@SET name=o value=3][@RETURN value=9][/@PROCEDURE][@VAR name=x value=0][@w o=$x][@EXPR value=x]`, "3"},
		{"transparent block keeps unread argument", `[@PROCEDURE name=p $who][@BLOCK transparent][@VAR name=who value=5][/@BLOCK][@EXPR value=who][/@PROCEDURE][@p who=1]`, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := render(t, tt.src)
			assert.Equal(t, tt.want, res.Text)
			assert.Empty(t, res.Errors)
		})
	}
}

func TestProcedureMissingArgument(t *testing.T) {
	res := render(t, `[@PROCEDURE name=greet $who]Hi[/@PROCEDURE][@greet]`)
	assert.True(t, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Msg, "missing argument who")
}

func TestUnknownTagSuggestsName(t *testing.T) {
	res, err := newTestEvaluator().Render(context.Background(), `before [@LOPP count=1]x[/@LOPP]`, Context{})
	require.Error(t, err)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, KindSemantic, e.Kind)
	assert.Contains(t, e.Msg, "did you mean LOOP?")
	require.NotNil(t, res)
	assert.True(t, strings.HasPrefix(res.Text, "before [ERROR"))
}

func TestRecoverableErrorsAreInline(t *testing.T) {
	res := render(t, `a[@GET name=missing]b`)
	assert.True(t, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "GET", res.Errors[0].Tag)
	assert.Equal(t, 1, res.Errors[0].Line)
	assert.Equal(t, 2, res.Errors[0].Col)
	assert.Equal(t, "a[ERROR "+res.Errors[0].Error()+"]b", res.Text)
}

func TestNoFailFlag(t *testing.T) {
	res := render(t, `a[@GET name=missing nofail]b`)
	assert.False(t, res.Failed)
	assert.Len(t, res.Errors, 1)
}

func TestHTMLMarker(t *testing.T) {
	res, err := New(WithNoStdlib()).Render(context.Background(), `[@GET name=missing]`, Context{})
	require.NoError(t, err)
	assert.Contains(t, res.Text, `<span class="tagx-error" data-kind="evaluation">`)
}

func TestStrictModeReturnsError(t *testing.T) {
	res, err := newTestEvaluator(WithStrict(true)).Render(context.Background(), `a[@GET name=missing]b`, Context{})
	require.Error(t, err)
	assert.Nil(t, res)
}

func TestTimeout(t *testing.T) {
	res, err := newTestEvaluator(WithTimeout(20*time.Millisecond)).Render(context.Background(), `[@LOOP count=-1]x[/@LOOP]`, Context{})
	require.Error(t, err)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, KindTimeout, e.Kind)
	assert.True(t, res.Failed)
}

func TestPassLimit(t *testing.T) {
	_, err := newTestEvaluator(WithMaxPasses(2)).Render(context.Background(), `[@@@@x]`, Context{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass limit")
}

func TestBookmarks(t *testing.T) {
	res := render(t, `<head>[@BOOKMARK name=head]</head>[@REPLACE_BOOKMARK name=head]<title>T</title>[/@REPLACE_BOOKMARK]`)
	assert.Equal(t, "<head><title>T</title></head>", res.Text)

	res = render(t, `[@BOOKMARK name=h][@REPLACE_BOOKMARK name=h]a[/@REPLACE_BOOKMARK][@REPLACE_BOOKMARK name=h append]b[/@REPLACE_BOOKMARK]`)
	assert.Equal(t, "ab", res.Text)

	res = render(t, `a[@BOOKMARK name=unused]b`)
	assert.Equal(t, "ab", res.Text)
}

func TestWhitespaceTags(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"indent", "[@INDENT count=2]a\nb[/@INDENT]", "  a\n  b"},
		{"indent text", "[@INDENT count=1 text=\"> \"]a\n\nb[/@INDENT]", "> a\n\n> b"},
		{"noindent", "[@NOINDENT]\n    a\n      b\n[/@NOINDENT]", "\na\n  b\n"},
		{"pack", "[@PACK]a\n\n  \nb[/@PACK]", "a\nb"},
		{"rem", "a[@REM]note[/@REM]b", "ab"},
		{"newline", "a[@NEWLINE]b", "a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, tt.src, WithPack(false)).Text)
		})
	}
}

func TestGlobalPackDropsBlankLines(t *testing.T) {
	res := render(t, "a\n\n[@VAR name=x value=1]\nb")
	assert.Equal(t, "a\nb", res.Text)
}

func TestMarkdown(t *testing.T) {
	res := render(t, "[@MARKDOWN]\n  # Title\n\n  some *text*\n[/@MARKDOWN]", WithPack(false))
	assert.Contains(t, res.Text, `<h1 id="title">Title</h1>`)
	assert.Contains(t, res.Text, `<em>text</em>`)
}

func TestDate(t *testing.T) {
	res := render(t, `[@DATE value="2024-01-05" format="Monday 2 January 2006" language="de"]`)
	assert.Equal(t, "Freitag 5 Januar 2024", res.Text)

	res = render(t, `[@DATE value="2024-01-05"]`)
	assert.Equal(t, "2024-01-05", res.Text)

	res = render(t, `[@DATE value="not a date"]`)
	assert.True(t, res.Failed)
}

func TestScriptTag(t *testing.T) {
	res := render(t, `[@VAR name=n value=2][@SCRIPT]
# doubles n
n = n * 2
print("n=", n)
[/@SCRIPT] [@EXPR value=n]`)
	assert.Equal(t, "n=4 4", res.Text)
}

func TestTrace(t *testing.T) {
	res := render(t, `[@TRACE value=1+1][@TRACE value="x"]`)
	assert.Equal(t, []string{"2", "x"}, res.Trace)
	assert.Empty(t, res.Text)
}

func newContentStore(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.PutLanguage(ctx, store.Language{ID: "en", Alias: "english", Name: "English", Default: true}))
	require.NoError(t, m.PutLanguage(ctx, store.Language{ID: "de", Alias: "german", Name: "Deutsch"}))
	require.NoError(t, m.PutArea(ctx, store.Area{ID: 1, Alias: "home", Name: "Home"}))
	require.NoError(t, m.PutArea(ctx, store.Area{ID: 2, Alias: "about", Name: "About", ParentID: 1}))
	require.NoError(t, m.PutSlot(ctx, store.SlotWrite{AreaID: 1, Name: "title", Language: "en", Value: "Welcome [@AREA_ALIAS]"}))
	require.NoError(t, m.PutSlot(ctx, store.SlotWrite{AreaID: 1, Name: "title", Language: "de", Value: "Willkommen"}))
	require.NoError(t, m.PutSlot(ctx, store.SlotWrite{AreaID: 1, Name: "footer", Language: "en", Value: "(c) [@AREA_ALIAS]"}))
	require.NoError(t, m.PutSlot(ctx, store.SlotWrite{AreaID: 1, Name: "widgets", Language: "en",
		Value: `[@PROCEDURE name=badge $t]<b>[@EXPR value=t]</b>[/@PROCEDURE]`}))
	require.NoError(t, m.PutResource(ctx, store.Resource{AreaID: 1, Name: "logo.txt", MimeType: "text/plain", Data: []byte("hi")}))
	return m
}

func TestContentTags(t *testing.T) {
	tests := []struct {
		name string
		src  string
		c    Context
		want string
	}{
		{"slot", `[@SLOT name=title]`, Context{Area: 1}, "Welcome home"},
		{"slot raw", `[@SLOT name=title raw]`, Context{Area: 1}, "Welcome [@AREA_ALIAS]"},
		{"slot language", `[@SLOT name=title]`, Context{Area: 1, Language: "de"}, "Willkommen"},
		{"slot default", `[@SLOT name=nothing default="-"]`, Context{Area: 1}, "-"},
		{"ancestor", `[@SLOT name=footer]`, Context{Area: 2}, "(c) about"},
		{"slot as tag", `[@title]`, Context{Area: 1}, "Welcome home"},
		{"slot defines procedure", `[@badge slot=widgets t="x"]`, Context{Area: 1}, "<b>x</b>"},
		{"set slot", `[@SET_SLOT name=note value="hi"][@SLOT name=note]`, Context{Area: 1}, "hi"},
		{"resource", `[@RESOURCE name="logo.txt"]`, Context{Area: 1}, "hi"},
		{"resource uri", `[@RESOURCE name="logo.txt" uri]`, Context{Area: 1}, "data:text/plain;base64,aGk="},
		{"area alias", `[@AREA_ID]/[@AREA_ALIAS]`, Context{Area: 2}, "2/about"},
		{"block area", `[@BLOCK area="about"][@AREA_ID][/@BLOCK]`, Context{Area: 1}, "2"},
		{"language default", `[@LANGUAGE_ID]/[@LANGUAGE_ALIAS]`, Context{Area: 1}, "en/english"},
		{"languages", `[@LANGUAGES divider=","][@LANGUAGE_ID][/@LANGUAGES]`, Context{Area: 1}, "en,de"},
		{"slot function", `[@EXPR value=upper(slot("footer"))]`, Context{Area: 1}, "(C) home"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEvaluator(WithStore(newContentStore(t)))
			res, err := e.Render(context.Background(), tt.src, tt.c)
			require.NoError(t, err)
			assert.Empty(t, res.Errors)
			assert.Equal(t, tt.want, res.Text)
		})
	}
}

func TestOutputLocks(t *testing.T) {
	e := newTestEvaluator(WithStore(newContentStore(t)))
	res, err := e.Render(context.Background(), `[@LOCK_OUTPUT name=page][@LOCK_OUTPUT name=page]`, Context{Area: 1})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, KindResource, res.Errors[0].Kind)

	res, err = e.Render(context.Background(), `[@UNLOCK_OUTPUT name=page][@LOCK_OUTPUT name=page]`, Context{Area: 1})
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
}

func TestMissingSlotIsResourceError(t *testing.T) {
	e := newTestEvaluator(WithStore(newContentStore(t)))
	res, err := e.Render(context.Background(), `[@SLOT name=nothing]`, Context{Area: 1})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, KindResource, res.Errors[0].Kind)
	assert.True(t, errors.Is(res.Errors[0], store.ErrNotFound))
}

func TestPreludeProcedures(t *testing.T) {
	e := New(WithErrorFormat(FormatPlain), WithPrelude(`[@PROCEDURE name=hello global $n]hello [@EXPR value=n][/@PROCEDURE]`))
	res, err := e.Render(context.Background(), `[@hello n="x"] [@LINK href="/a" text="A"]`, Context{})
	require.NoError(t, err)
	assert.Equal(t, `hello x <a href="/a">A</a>`, res.Text)

	_, err = New(WithNoStdlib()).Render(context.Background(), `[@LINK href="/a" text="A"]`, Context{})
	require.Error(t, err)
}

func TestProcedureCannotShadowBuiltin(t *testing.T) {
	res := render(t, `[@PROCEDURE name=loop]x[/@PROCEDURE]`)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0].Msg, "shadows")
}

func TestRegistryCoversBuiltinNames(t *testing.T) {
	structural := map[string]bool{"IF": true, "ELSEIF": true, "ELSE": true, "ENDIF": true, "CALL": true}
	for _, name := range builtinNames {
		n := 0
		if getSimple(name) != nil {
			n++
		}
		if getComplex(name) != nil {
			n++
		}
		if getFull(name) != nil {
			n++
		}
		if structural[name] {
			assert.Zero(t, n, name)
			continue
		}
		assert.Equal(t, 1, n, "%s must be in exactly one registry", name)
	}
}

type recorder struct {
	debug.Nop
	points []debug.Point
}

func (r *recorder) DebugPoint(_ context.Context, p debug.Point) error {
	r.points = append(r.points, p)
	return nil
}

func TestDebugHookSeesTags(t *testing.T) {
	rec := &recorder{}
	render(t, "[@VAR name=x value=1]\n[@BREAK]", WithDebugger(rec))
	var kinds []debug.Kind
	for _, p := range rec.points {
		kinds = append(kinds, p.Kind)
	}
	assert.Equal(t, []debug.Kind{debug.RequestStart, debug.ComplexTag, debug.ComplexTag, debug.Breakpoint, debug.RequestEnd}, kinds)
	assert.Equal(t, 2, rec.points[3].Line)
}

func TestRequestPersistsAcrossRenders(t *testing.T) {
	e := newTestEvaluator()
	req, err := e.NewRequest(context.Background(), Context{})
	require.NoError(t, err)
	_, err = req.Render(`[@VAR name=x value=5]`)
	require.NoError(t, err)
	out, err := req.Render(`[@EXPR value=x]`)
	require.NoError(t, err)
	assert.Equal(t, "5", out)
}
