package main

// triangleSource colors each vertex from unit 1 and interpolates.
const triangleSource = `
@group(0) @binding(0) var<storage, read> positions: array<vec4<f32>>;
@group(0) @binding(1) var<storage, read> colors: array<vec4<f32>>;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) color: vec4<f32>,
}

@vertex
fn demo_triangle_vs(@builtin(vertex_index) i: u32) -> VertexOutput {
    var out: VertexOutput;
    out.position = positions[i];
    out.color = colors[i];
    return out;
}

@fragment
fn demo_triangle_fs(@location(0) color: vec4<f32>) -> @location(0) vec4<f32> {
    return color;
}
`

// instanceSource draws one quad per instance. Unit 0 holds the quad
// corners, unit 1 one (x, y, scale, depth) row per instance and unit 2 one
// color per instance. The second attachment receives the quad coordinates.
const instanceSource = `
@group(0) @binding(0) var<storage, read> corners: array<vec2<f32>>;
@group(0) @binding(1) var<storage, read> placements: array<vec4<f32>>;
@group(0) @binding(2) var<storage, read> tints: array<vec4<f32>>;
@group(2) @binding(0) var<uniform> spread: f32;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) color: vec4<f32>,
    @location(1) uv: vec2<f32>,
}

struct FragmentOutput {
    @location(0) color: vec4<f32>,
    @location(1) uv: vec4<f32>,
}

@vertex
fn demo_instance_vs(@builtin(vertex_index) i: u32, @builtin(instance_index) n: u32) -> VertexOutput {
    let p = placements[n];
    let c = corners[i];
    var out: VertexOutput;
    out.position = vec4<f32>(p.xy * spread + c * p.z, p.w, 1.0);
    out.color = tints[n];
    out.uv = c * 0.5 + vec2<f32>(0.5, 0.5);
    return out;
}

@fragment
fn demo_instance_fs(@location(0) color: vec4<f32>, @location(1) uv: vec2<f32>) -> FragmentOutput {
    var out: FragmentOutput;
    out.color = color;
    out.uv = vec4<f32>(uv, 0.0, 1.0);
    return out;
}
`

// vectorSource adds two arrays of tightly packed vec3s element-wise and
// captures the result as vector3.
const vectorSource = `
@group(0) @binding(0) var<storage, read> vector1: array<f32>;
@group(0) @binding(1) var<storage, read> vector2: array<f32>;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) vector3: vec3<f32>,
}

@vertex
fn demo_vector_vs(@builtin(vertex_index) i: u32) -> VertexOutput {
    let k = 3u * i;
    var out: VertexOutput;
    out.position = vec4<f32>(0.0, 0.0, 0.0, 1.0);
    out.vector3 = vec3<f32>(
        vector1[k] + vector2[k],
        vector1[k + 1u] + vector2[k + 1u],
        vector1[k + 2u] + vector2[k + 2u],
    );
    return out;
}
`
