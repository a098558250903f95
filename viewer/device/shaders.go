package device

// batchShaderSource draws tessellated scene geometry with a flat fill color
// under a single camera transform.
const batchShaderSource = `
struct Uniforms {
    transform: mat4x4<f32>,
    color: vec4<f32>,
};

@group(0) @binding(0) var<uniform> uniforms: Uniforms;

@vertex
fn vs_main(@location(0) position: vec2<f32>) -> @builtin(position) vec4<f32> {
    return uniforms.transform * vec4<f32>(position, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return uniforms.color;
}
`

// groundShaderSource draws the 3D environment's ground plane and gridlines:
// flat-colored 3D geometry under the eye's perspective transform.
const groundShaderSource = `
struct Uniforms {
    transform: mat4x4<f32>,
    color: vec4<f32>,
};

@group(0) @binding(0) var<uniform> uniforms: Uniforms;

@vertex
fn vs_main(@location(0) position: vec3<f32>) -> @builtin(position) vec4<f32> {
    return uniforms.transform * vec4<f32>(position, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return uniforms.color;
}
`

// reprojectShaderSource composites a previously rendered eye texture under a
// newer transform: the quad is positioned with the new transform while the
// fragment stage samples the texture through the old one, hiding head-tracking
// latency.
const reprojectShaderSource = `
struct Uniforms {
    old_transform: mat4x4<f32>,
    new_transform: mat4x4<f32>,
};

@group(0) @binding(0) var<uniform> uniforms: Uniforms;
@group(0) @binding(1) var eye_texture: texture_2d<f32>;
@group(0) @binding(2) var eye_sampler: sampler;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) plane_position: vec2<f32>,
};

@vertex
fn vs_main(@location(0) position: vec2<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.position = uniforms.new_transform * vec4<f32>(position, 0.0, 1.0);
    out.plane_position = position;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let norm = uniforms.old_transform * vec4<f32>(in.plane_position, 0.0, 1.0);
    let tex_coord = (norm.xy / norm.w + vec2<f32>(1.0, 1.0)) * 0.5;
    return textureSample(eye_texture, eye_sampler, tex_coord);
}
`
